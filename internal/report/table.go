package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spigell/segcompare/internal/compare"
	"github.com/spigell/segcompare/internal/segment"
	"github.com/spigell/segcompare/internal/utils"
)

const (
	remediationWidth = 60
	previewWidth     = 50
)

var statusColors = map[compare.Status]tablewriter.Colors{
	compare.StatusSufficient:         {tablewriter.FgGreenColor},
	compare.StatusMissing:            {tablewriter.FgRedColor, tablewriter.Bold},
	compare.StatusLackingInformation: {tablewriter.FgYellowColor},
	compare.StatusOtherIssue:         {tablewriter.FgMagentaColor},
}

var summaryColors = map[compare.Status]*color.Color{
	compare.StatusSufficient:         color.New(color.FgGreen),
	compare.StatusMissing:            color.New(color.FgRed, color.Bold),
	compare.StatusLackingInformation: color.New(color.FgYellow),
	compare.StatusOtherIssue:         color.New(color.FgMagenta),
}

// Table renders one row per section. Rows are coloured by status unless
// colour output is disabled.
func Table(w io.Writer, r *compare.Report) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(true)
	table.SetColWidth(remediationWidth)
	table.SetHeader([]string{"", "Section", "Status", "Match", "Remediation"})

	for _, entry := range r.Entries() {
		record := entry.Record

		status := string(record.Status)
		if record.SubStatus != "" {
			status += " (" + string(record.SubStatus) + ")"
		}

		row := []string{
			record.Status.Icon(),
			entry.Section,
			status,
			strconv.Itoa(record.MatchPercent) + "%",
			record.Remediation,
		}

		if color.NoColor {
			table.Append(row)
			continue
		}

		style := statusColors[record.Status]
		table.Rich(row, []tablewriter.Colors{style, {tablewriter.Bold}, style})
	}

	table.Render()
}

// Preview renders the sections of a segmented document with the size of each.
func Preview(w io.Writer, m *segment.Map) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Section", "Lines", "First line"})

	for i, section := range m.Sections() {
		lines := strings.Split(section.Text, "\n")

		// every section but Header starts with its heading line
		body := lines[1:]
		if section.Name == segment.HeaderSection {
			body = lines
		}

		first := ""
		if len(body) > 0 {
			first = utils.TruncateForLog(body[0], previewWidth)
		}

		table.Append([]string{
			strconv.Itoa(i + 1),
			section.Name,
			strconv.Itoa(len(lines)),
			first,
		})
	}

	table.Render()
}

// WriteSummary prints the count per status and the mean match percent.
func WriteSummary(w io.Writer, s Summary) {
	parts := make([]string, 0, len(compare.Statuses))
	for _, status := range compare.Statuses {
		count := s.Counts[status]
		if count == 0 {
			continue
		}
		parts = append(parts, summaryColors[status].Sprintf("%s %s: %d", status.Icon(), status, count))
	}

	if len(parts) == 0 {
		fmt.Fprintln(w, "No sections compared.")
		return
	}

	fmt.Fprintf(w, "%s\n", strings.Join(parts, "  "))
	fmt.Fprintf(w, "Sections: %d, mean match: %.1f%%\n", s.Total, s.MeanMatchPercent)
}
