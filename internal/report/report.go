// Package report renders comparison reports for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spigell/segcompare/internal/compare"
)

// WriteJSON writes the report as indented JSON keyed by section, in template order.
func WriteJSON(w io.Writer, r *compare.Report) error {
	if r == nil {
		r = compare.NewReport()
	}

	raw, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if _, err := w.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// ParseStatuses resolves user supplied status names, case and separator insensitive.
func ParseStatuses(values []string) ([]compare.Status, error) {
	statuses := make([]compare.Status, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := compare.LookupStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

// Filter returns a report holding only the sections with one of the given statuses.
// No statuses keeps every section.
func Filter(r *compare.Report, statuses ...compare.Status) *compare.Report {
	if len(statuses) == 0 {
		return compare.NewReport(r.Entries()...)
	}

	keep := make(map[compare.Status]bool, len(statuses))
	for _, status := range statuses {
		keep[status] = true
	}

	var entries []compare.Entry
	for _, entry := range r.Entries() {
		if keep[entry.Record.Status] {
			entries = append(entries, entry)
		}
	}
	return compare.NewReport(entries...)
}

type Summary struct {
	Total            int
	Counts           map[compare.Status]int
	MeanMatchPercent float64
}

func Summarize(r *compare.Report) Summary {
	summary := Summary{Counts: make(map[compare.Status]int, len(compare.Statuses))}

	total := 0
	for _, entry := range r.Entries() {
		summary.Total++
		summary.Counts[entry.Record.Status]++
		total += entry.Record.MatchPercent
	}

	if summary.Total > 0 {
		summary.MeanMatchPercent = float64(total) / float64(summary.Total)
	}
	return summary
}
