package compare

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusMissing            Status = "Missing"
	StatusSufficient         Status = "Sufficient"
	StatusLackingInformation Status = "Lacking Information"
	StatusOtherIssue         Status = "Other Issue"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusMissing, StatusLackingInformation, StatusSufficient, StatusOtherIssue}

// SubStatus refines a status when the judgment could not be made.
type SubStatus string

const SubStatusOracleUnavailable SubStatus = "OracleUnavailable"

const unknownIcon = "?"

// Icon returns the marker shown next to a section with this status.
func (s Status) Icon() string {
	switch s {
	case StatusSufficient:
		return "✓"
	case StatusMissing:
		return "✗"
	case StatusLackingInformation:
		return "⚠"
	default:
		return unknownIcon
	}
}

// LookupStatus resolves user or oracle input such as "lacking_information" to a known status.
func LookupStatus(token string) (Status, bool) {
	key := normalizeStatus(token)
	for _, status := range Statuses {
		if normalizeStatus(string(status)) == key {
			return status, true
		}
	}
	return "", false
}

func normalizeStatus(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.Trim(token, "*_`'\".")
	return strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "").Replace(token)
}

// Record is the comparison result of one template section.
type Record struct {
	TemplateText string    `json:"template"`
	FilledText   string    `json:"filled"`
	Status       Status    `json:"status"`
	SubStatus    SubStatus `json:"sub_status,omitempty"`
	Analysis     string    `json:"analysis"`
	Remediation  string    `json:"remediation"`
	MatchPercent int       `json:"match_percent"`
}

// Entry pairs a record with its template section name.
type Entry struct {
	Section string
	Record  Record
}

// Report holds one record per template section, in template order.
type Report struct {
	names   []string
	records map[string]Record
}

// NewReport builds a report from entries, keeping their order.
func NewReport(entries ...Entry) *Report {
	r := &Report{records: make(map[string]Record, len(entries))}
	for _, e := range entries {
		r.add(e.Section, e.Record)
	}
	return r
}

func (r *Report) add(section string, record Record) {
	if r.records == nil {
		r.records = make(map[string]Record)
	}
	if _, ok := r.records[section]; !ok {
		r.names = append(r.names, section)
	}
	r.records[section] = record
}

func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

func (r *Report) Sections() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

func (r *Report) Get(section string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	record, ok := r.records[section]
	return record, ok
}

func (r *Report) Entries() []Entry {
	if r == nil {
		return nil
	}
	entries := make([]Entry, 0, len(r.names))
	for _, name := range r.names {
		entries = append(entries, Entry{Section: name, Record: r.records[name]})
	}
	return entries
}

// MarshalJSON writes the report as an object keyed by section name in template order.
func (r *Report) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range r.Entries() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(e.Section)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Record)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (r *Report) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("report must be a JSON object")
	}

	parsed := &Report{records: make(map[string]Record)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read section name: %w", err)
		}
		section, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected section name token %v", tok)
		}

		var record Record
		if err := dec.Decode(&record); err != nil {
			return fmt.Errorf("read record %q: %w", section, err)
		}
		parsed.add(section, record)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read report end: %w", err)
	}

	*r = *parsed
	return nil
}
