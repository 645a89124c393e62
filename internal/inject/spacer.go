package inject

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Spacer inserts a separating space between consecutive injections.
type Spacer struct {
	last string
}

// Apply trims text and prefixes a space when the previous injection did
// not end in whitespace and text does not open with punctuation.
func (s *Spacer) Apply(text string) string {
	clean := strings.TrimSpace(text)
	if clean == "" || s.last == "" {
		return clean
	}

	lastRune, _ := utf8.DecodeLastRuneInString(s.last)
	if unicode.IsSpace(lastRune) {
		return clean
	}

	first, _ := utf8.DecodeRuneInString(clean)
	if strings.ContainsRune(".,;:!?)]}", first) {
		return clean
	}
	return " " + clean
}

func (s *Spacer) Record(text string) {
	s.last = text
}
