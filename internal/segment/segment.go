package segment

import (
	"regexp"
	"strings"
)

// HeaderSection is the section name used for content preceding the first heading.
const HeaderSection = "Header"

var (
	numberedHeading = regexp.MustCompile(`^\d+\.`)
	titledHeading   = regexp.MustCompile(`^[A-Z][A-Za-z\s]+:$`)
)

// HeadingFunc reports whether a trimmed line starts a new section.
type HeadingFunc func(line string) bool

// NumberedHeading matches lines such as "1." or "12. Budget".
func NumberedHeading(line string) bool {
	return numberedHeading.MatchString(line)
}

// TitledHeading matches lines such as "Conclusion:" or "Scope Of Work:".
func TitledHeading(line string) bool {
	return titledHeading.MatchString(line)
}

// AnyHeading composes predicates with a logical OR.
func AnyHeading(preds ...HeadingFunc) HeadingFunc {
	return func(line string) bool {
		for _, pred := range preds {
			if pred != nil && pred(line) {
				return true
			}
		}
		return false
	}
}

// Segmenter splits documents into sections. The zero value uses NumberedHeading and TitledHeading.
type Segmenter struct {
	headings []HeadingFunc
}

func New(headings ...HeadingFunc) *Segmenter {
	return &Segmenter{headings: headings}
}

// Segment splits text with the default heading predicates.
func Segment(text string) *Map {
	return (&Segmenter{}).Segment(text)
}

// Segment scans text line by line and assigns every line to a section.
// A repeated heading resets the content collected under the earlier occurrence.
func (s *Segmenter) Segment(text string) *Map {
	isHeading := s.isHeading()

	current := HeaderSection
	order := []string{current}
	buffers := map[string][]string{current: nil}

	for _, line := range splitLines(text) {
		if trimmed := strings.TrimSpace(line); isHeading(trimmed) {
			current = trimmed
			if _, ok := buffers[current]; !ok {
				order = append(order, current)
			}
			buffers[current] = nil
		}
		buffers[current] = append(buffers[current], line)
	}

	m := &Map{texts: make(map[string]string, len(order))}
	for _, name := range order {
		lines := buffers[name]
		// an empty preamble is dropped unless it is the only section
		if name == HeaderSection && len(lines) == 0 && len(order) > 1 {
			continue
		}
		m.set(name, strings.Join(lines, "\n"))
	}

	return m
}

func (s *Segmenter) isHeading() HeadingFunc {
	if s == nil || len(s.headings) == 0 {
		return AnyHeading(NumberedHeading, TitledHeading)
	}
	return AnyHeading(s.headings...)
}

// splitLines accepts \r\n, \r and \n; a trailing terminator does not produce an empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")

	return strings.Split(text, "\n")
}
