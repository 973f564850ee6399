package segment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Map is an ordered, immutable mapping from section name to section text.
type Map struct {
	names []string
	texts map[string]string
}

// Section is a single named span of a document.
type Section struct {
	Name string
	Text string
}

// FromSections builds a Map keeping the given order. A repeated name overwrites the earlier text
// but keeps its position.
func FromSections(sections ...Section) *Map {
	m := &Map{texts: make(map[string]string, len(sections))}
	for _, s := range sections {
		m.set(s.Name, s.Text)
	}
	return m
}

func (m *Map) set(name, text string) {
	if m.texts == nil {
		m.texts = make(map[string]string)
	}
	if _, ok := m.texts[name]; !ok {
		m.names = append(m.names, name)
	}
	m.texts[name] = text
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Names returns the section names in document order.
func (m *Map) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// Get returns the text of the named section.
func (m *Map) Get(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	text, ok := m.texts[name]
	return text, ok
}

// Sections returns all sections in document order.
func (m *Map) Sections() []Section {
	if m == nil {
		return nil
	}
	sections := make([]Section, 0, len(m.names))
	for _, name := range m.names {
		sections = append(sections, Section{Name: name, Text: m.texts[name]})
	}
	return sections
}

// Text joins all sections back together with newlines.
func (m *Map) Text() string {
	var b bytes.Buffer
	for i, s := range m.Sections() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// MarshalJSON writes the sections as a JSON object in document order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, s := range m.Sections() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.Text)
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

// UnmarshalJSON reads a JSON object of string values, keeping the key order of the input.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read segment map: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("segment map must be a JSON object")
	}

	parsed := &Map{texts: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read section name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected section name token %v", tok)
		}

		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("read section %q: %w", name, err)
		}
		parsed.set(name, text)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read segment map end: %w", err)
	}

	*m = *parsed
	return nil
}
