package document

import (
	"strings"
)

// Extraction sources reported in Number.Source.
const (
	SourcePrimary     = "primary"
	SourceAlternative = "alternative"
)

// Number is a document identifier found in OCR text.
type Number struct {
	// Value is the identifier with whitespace and hyphens removed, uppercased.
	Value string `json:"value"`

	// FormatValid reports whether Value passes the type's strict validator.
	// A number can be found and still be malformed by OCR noise.
	FormatValid bool `json:"format_valid"`

	// Source is the pattern that produced the number.
	Source string `json:"source"`
}

// ExtractNumber finds the identifier of type t in text. The primary pattern is
// tried first, then the labelled alternative. It returns nil when neither
// matches or t is not a known type.
func ExtractNumber(text string, t DocumentType) *Number {
	sig, ok := Lookup(t)
	if !ok {
		return nil
	}

	if loc := sig.PrimaryIndex(text); loc != nil {
		return newNumber(t, text[loc[0]:loc[1]], SourcePrimary)
	}

	if m := sig.Alternative.FindStringSubmatch(text); m != nil {
		raw := m[0]
		if len(m) > 1 && m[1] != "" {
			raw = m[1]
		}
		return newNumber(t, raw, SourceAlternative)
	}

	return nil
}

func newNumber(t DocumentType, raw, source string) *Number {
	value := NormalizeNumber(raw)
	return &Number{
		Value:       value,
		FormatValid: ValidateFormat(t, value),
		Source:      source,
	}
}

// NormalizeNumber strips whitespace and hyphens and uppercases s, so that a
// declared number and an extracted one can be compared directly.
func NormalizeNumber(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateFormat checks number against the strict format of t.
func ValidateFormat(t DocumentType, number string) bool {
	sig, ok := Lookup(t)
	if !ok {
		return false
	}
	normalized := NormalizeNumber(number)
	return len(normalized) == sig.NumberLength && sig.Format.MatchString(normalized)
}
