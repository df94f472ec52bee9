// Package document classifies OCR text of Indian government identity documents
// and extracts their identifier numbers.
//
// Each supported DocumentType owns a Signature: a strict primary pattern for
// its identifier, an alternative pattern anchored on a printed label, a
// keyword set, the expected identifier length, a confidence range and a
// format validator used as an independent check on extracted numbers.
//
// Supported documents:
//   - PAN card: ABCDE1234F
//   - Aadhaar card: 1234 5678 9012
//   - Passport: A1234567
//   - Driving licence: MH14 20110012345
package document

import (
	"fmt"
	"regexp"
	"strings"
)

// DocumentType identifies a kind of government ID.
type DocumentType string

const (
	PAN            DocumentType = "PAN"
	Aadhaar        DocumentType = "AADHAAR"
	Passport       DocumentType = "PASSPORT"
	DrivingLicense DocumentType = "DRIVING_LICENSE"
	Unknown        DocumentType = "UNKNOWN"
)

// Signature describes how a document type is recognized in OCR text.
type Signature struct {
	Type        DocumentType
	DisplayName string

	// Primary matches the bare identifier anywhere in the text.
	Primary *regexp.Regexp

	// Alternative matches the identifier after its printed label; the first
	// capture group holds the number. It tolerates O, I and L read in place
	// of digits, so its captures can fail Format.
	Alternative *regexp.Regexp

	// Format validates a normalized identifier.
	Format *regexp.Regexp

	// Keywords are lowercase phrases printed on the document, matched as
	// whole words.
	Keywords []string

	// Grouped identifiers are printed in digit groups. A primary match that
	// runs on into a neighbouring group is part of a longer number, such as
	// an Aadhaar VID, and is skipped.
	Grouped bool

	NumberLength  int
	MinConfidence float64
	MaxConfidence float64
}

// signatures is ordered; classification ties go to the earlier entry.
var signatures = []Signature{
	{
		Type:        PAN,
		DisplayName: "PAN Card",
		Primary:     regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`),
		Alternative: regexp.MustCompile(`(?i)\b(?:permanent\s+account\s+number|pan)(?:\s*(?:card|no\.?|number))?[\s:.\-]*([A-Z0-9]{5}\s?[0-9OIL]{4}\s?[A-Z0-9])\b`),
		Format:      regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`),
		Keywords: []string{
			"income tax department",
			"permanent account number",
			"govt. of india",
			"pan",
		},
		NumberLength:  10,
		MinConfidence: 0.6,
		MaxConfidence: 0.95,
	},
	{
		Type:        Aadhaar,
		DisplayName: "Aadhaar Card",
		Primary:     regexp.MustCompile(`\b[0-9]{4}\s?[0-9]{4}\s?[0-9]{4}\b`),
		Alternative: regexp.MustCompile(`(?i)\b(?:aadhaar|aadhar|uid)(?:\s*(?:no\.?|number))?[\s:.\-]*([0-9OIL]{4}\s?[0-9OIL]{4}\s?[0-9OIL]{4})\b`),
		Format:      regexp.MustCompile(`^[0-9]{12}$`),
		Keywords: []string{
			"aadhaar",
			"unique identification authority",
			"government of india",
			"uidai",
			"mera aadhaar",
		},
		Grouped:       true,
		NumberLength:  12,
		MinConfidence: 0.6,
		MaxConfidence: 0.95,
	},
	{
		Type:        Passport,
		DisplayName: "Passport",
		Primary:     regexp.MustCompile(`\b[A-Z][0-9]{7}\b`),
		Alternative: regexp.MustCompile(`(?i)passport(?:\s*(?:no\.?|number))?[\s:.\-]*([A-Z][0-9OIL]{7})\b`),
		Format:      regexp.MustCompile(`^[A-Z][0-9]{7}$`),
		Keywords: []string{
			"passport",
			"republic of india",
			"nationality",
			"place of issue",
			"date of expiry",
		},
		NumberLength:  8,
		MinConfidence: 0.6,
		MaxConfidence: 0.9,
	},
	{
		Type:        DrivingLicense,
		DisplayName: "Driving Licence",
		Primary:     regexp.MustCompile(`\b[A-Z]{2}[\- ]?[0-9]{2}[\- ]?[0-9]{4}[\- ]?[0-9]{7}\b`),
		Alternative: regexp.MustCompile(`(?i)\b(?:dl|licen[cs]e)(?:\s*(?:no\.?|number))?[\s:.\-]*([A-Z]{2}[\- ]?[0-9OIL]{2}[\- ]?[0-9OIL]{4}[\- ]?[0-9OIL]{7})\b`),
		Format:      regexp.MustCompile(`^[A-Z]{2}[0-9]{13}$`),
		Keywords: []string{
			"driving licence",
			"driving license",
			"transport department",
			"motor vehicles",
			"date of issue",
		},
		NumberLength:  15,
		MinConfidence: 0.55,
		MaxConfidence: 0.9,
	},
}

// PrimaryIndex returns the location of the first primary match in text, or
// nil.
func (s Signature) PrimaryIndex(text string) []int {
	for _, loc := range s.Primary.FindAllStringIndex(text, -1) {
		if !s.Grouped || !continuesGroup(text, loc) {
			return loc
		}
	}
	return nil
}

// MatchPrimary reports whether text contains a primary match.
func (s Signature) MatchPrimary(text string) bool {
	return s.PrimaryIndex(text) != nil
}

// continuesGroup reports whether a digit follows or precedes the match at
// loc, allowing one separator in between.
func continuesGroup(text string, loc []int) bool {
	after := text[loc[1]:]
	if len(after) > 0 && (after[0] == ' ' || after[0] == '-') {
		after = after[1:]
	}
	if len(after) > 0 && isDigit(after[0]) {
		return true
	}

	before := text[:loc[0]]
	if n := len(before); n > 0 && (before[n-1] == ' ' || before[n-1] == '-') {
		before = before[:n-1]
	}
	return len(before) > 0 && isDigit(before[len(before)-1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Signatures returns the known document signatures in declaration order.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	copy(out, signatures)
	return out
}

// Lookup returns the signature of t.
func Lookup(t DocumentType) (Signature, bool) {
	for _, sig := range signatures {
		if sig.Type == t {
			return sig, true
		}
	}
	return Signature{}, false
}

// ParseType accepts the canonical name or a common alias of a document type.
func ParseType(s string) (DocumentType, error) {
	switch strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))) {
	case "PAN", "PAN_CARD":
		return PAN, nil
	case "AADHAAR", "AADHAR", "AADHAAR_CARD":
		return Aadhaar, nil
	case "PASSPORT":
		return Passport, nil
	case "DRIVING_LICENSE", "DRIVING_LICENCE", "DL":
		return DrivingLicense, nil
	default:
		return Unknown, fmt.Errorf("unknown document type %q", s)
	}
}

// String returns the canonical name.
func (t DocumentType) String() string {
	return string(t)
}

// DisplayName returns a human-readable name for t.
func (t DocumentType) DisplayName() string {
	if sig, ok := Lookup(t); ok {
		return sig.DisplayName
	}
	return "Unknown Document"
}
