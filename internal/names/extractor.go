// Package names locates the holder's name in OCR output.
//
// Text strategies run in priority order and the first hit wins:
//
//  1. hint: the declared name found verbatim (case-insensitive)
//  2. standalone_line: a line of 2-4 capitalized words
//  3. dob_proximity: a capitalized run just before the date of birth
//  4. label: "Name:", "Full Name:", "Given Name:" or "Holder Name:"
//  5. header_proximity: between the issuing-authority header and the number
//
// Every strategy rejects candidates containing institutional words such as
// "Government" or "Department". ExtractFromWords works on OCR words with
// bounding boxes instead and is preferred when the provider supplies them.
package names

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"idverify/internal/document"
	"idverify/internal/logger"
)

// Candidate sources.
const (
	SourceHint            = "hint"
	SourceWordPosition    = "word_position"
	SourceStandaloneLine  = "standalone_line"
	SourceDateOfBirth     = "dob_proximity"
	SourceLabel           = "label"
	SourceHeaderProximity = "header_proximity"
)

// Candidate is an extracted name and where it came from.
type Candidate struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// dobLookback is how many characters before the date of birth are searched.
const dobLookback = 200

var (
	// 2-4 capitalized words making up a whole line.
	nameLineRe = regexp.MustCompile(`^[A-Z][A-Za-z'.]*(?:\s+[A-Z][A-Za-z'.]*){1,3}$`)

	// a 2-4 word capitalized run anywhere in a line.
	nameRunRe = regexp.MustCompile(`[A-Z][A-Za-z'.]*(?:[ \t]+[A-Z][A-Za-z'.]*){1,3}`)

	dobRe = regexp.MustCompile(`(?i)\b(?:date\s+of\s+birth|year\s+of\s+birth|d\.?o\.?b\b\.?)|\b\d{2}[/\-.]\d{2}[/\-.]\d{4}\b`)

	// S/O, D/O, W/O and C/O introduce a relative's name on Aadhaar cards.
	relationMarkerRe = regexp.MustCompile(`(?i)\b[sdwc]\s*/\s*o\b`)

	labelRe = regexp.MustCompile(`(?i:\b(?:full\s+name|given\s+names?|holder'?s?\s+name|name))\s*[:\-]\s*([A-Z][A-Za-z'.]*(?:[ \t]+[A-Z][A-Za-z'.]*){0,3})`)

	headerRe = regexp.MustCompile(`(?i)(?:government\s+of|govt\.?\s+of|unique\s+identification|income\s+tax\s+department|republic\s+of\s+india|transport\s+department)[^\n]*`)
)

// institutionalWords never appear in a person's name on these documents.
var institutionalWords = map[string]bool{
	"GOVERNMENT": true, "GOVT": true, "DEPARTMENT": true, "AUTHORITY": true,
	"INDIA": true, "INCOME": true, "TAX": true, "REPUBLIC": true,
	"UNIQUE": true, "IDENTIFICATION": true, "PERMANENT": true, "ACCOUNT": true,
	"NUMBER": true, "CARD": true, "AADHAAR": true, "AADHAR": true, "UIDAI": true,
	"PASSPORT": true, "NATIONALITY": true, "DRIVING": true, "LICENCE": true,
	"LICENSE": true, "TRANSPORT": true, "MOTOR": true, "VEHICLES": true,
	"DATE": true, "BIRTH": true, "DOB": true, "ISSUE": true, "EXPIRY": true,
	"VALID": true, "SIGNATURE": true, "ADDRESS": true, "MALE": true, "FEMALE": true,
	"FATHER": true, "MOTHER": true, "HUSBAND": true, "ENROLMENT": true, "NAME": true,
	"TYPE": true, "CODE": true, "PLACE": true, "SEX": true, "STATE": true,
}

// relationPrefixes mark labels naming someone other than the holder.
var relationPrefixes = []string{"father", "mother", "husband", "spouse", "guardian"}

// Config tunes the word-level extractor.
type Config struct {
	// WordConfidenceMin drops OCR words below this confidence.
	WordConfidenceMin float64

	// TopFraction limits the search to the top part of the page.
	TopFraction float64
}

// DefaultConfig returns the settings used in production.
func DefaultConfig() Config {
	return Config{
		WordConfidenceMin: 0.6,
		TopFraction:       0.4,
	}
}

// Extractor finds holder names in OCR output.
type Extractor struct {
	config Config
	log    zerolog.Logger
}

// NewExtractor creates an Extractor. Zero fields in config take defaults.
func NewExtractor(config Config) *Extractor {
	def := DefaultConfig()
	if config.WordConfidenceMin <= 0 {
		config.WordConfidenceMin = def.WordConfidenceMin
	}
	if config.TopFraction <= 0 || config.TopFraction > 1 {
		config.TopFraction = def.TopFraction
	}
	return &Extractor{
		config: config,
		log:    logger.WithComponent("name-extractor"),
	}
}

type strategy struct {
	source     string
	confidence float64
	find       func(text, hint string) string
}

var strategies = []strategy{
	{SourceHint, 0.95, findHint},
	{SourceStandaloneLine, 0.8, func(text, _ string) string { return findStandaloneLine(text) }},
	{SourceDateOfBirth, 0.75, func(text, _ string) string { return findNearDateOfBirth(text) }},
	{SourceLabel, 0.7, func(text, _ string) string { return findLabelled(text) }},
	{SourceHeaderProximity, 0.6, func(text, _ string) string { return findAfterHeader(text) }},
}

// Extract returns the first candidate produced by the text strategies, or
// nil when none finds a name. hint may be empty.
func (e *Extractor) Extract(text, hint string) *Candidate {
	for _, s := range strategies {
		if name := s.find(text, hint); name != "" {
			e.log.Debug().Str("source", s.source).Str("name", name).Msg("Name extracted")
			return &Candidate{Text: name, Source: s.source, Confidence: s.confidence}
		}
	}
	e.log.Debug().Int("text_length", len(text)).Msg("No name found in text")
	return nil
}

// Candidates runs every text strategy and returns all hits in priority order.
func (e *Extractor) Candidates(text, hint string) []Candidate {
	var out []Candidate
	for _, s := range strategies {
		if name := s.find(text, hint); name != "" {
			out = append(out, Candidate{Text: name, Source: s.source, Confidence: s.confidence})
		}
	}
	return out
}

// findHint searches for every word of hint and, when all are present,
// returns the literal text spanning the word sequence.
func findHint(text, hint string) string {
	words := strings.Fields(strings.ToUpper(hint))
	if len(words) == 0 {
		return ""
	}
	upper := strings.ToUpper(text)
	for _, w := range words {
		if !strings.Contains(upper, w) {
			return ""
		}
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	pattern := `(?i)\b` + strings.Join(quoted, `\s+`)
	if last, _ := utf8.DecodeLastRuneInString(words[len(words)-1]); unicode.IsLetter(last) || unicode.IsDigit(last) {
		pattern += `\b`
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}
	return collapseSpaces(re.FindString(text))
}

func findStandaloneLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if nameLineRe.MatchString(line) && !isInstitutional(line) {
			return collapseSpaces(line)
		}
	}
	return ""
}

// findNearDateOfBirth inspects the text preceding the first date-of-birth
// marker, nearest line first.
func findNearDateOfBirth(text string) string {
	loc := dobRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	window := text[max(0, loc[0]-dobLookback):loc[0]]
	lines := strings.Split(window, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if name := lastRun(lines[i]); name != "" {
			return name
		}
	}
	return ""
}

func findLabelled(text string) string {
	for _, m := range labelRe.FindAllStringSubmatchIndex(text, -1) {
		lineStart := strings.LastIndexByte(text[:m[0]], '\n') + 1
		prefix := strings.ToLower(text[lineStart:m[0]])
		if hasRelationPrefix(prefix) {
			continue
		}
		name := collapseSpaces(text[m[2]:m[3]])
		if !isInstitutional(name) {
			return name
		}
	}
	return ""
}

// findAfterHeader looks between the last issuing-authority header and the
// first number-shaped token.
func findAfterHeader(text string) string {
	numStart := -1
	for _, sig := range document.Signatures() {
		if loc := sig.PrimaryIndex(text); loc != nil && (numStart < 0 || loc[0] < numStart) {
			numStart = loc[0]
		}
	}
	if numStart < 0 {
		return ""
	}

	headerEnd := -1
	for _, loc := range headerRe.FindAllStringIndex(text[:numStart], -1) {
		headerEnd = loc[1]
	}
	if headerEnd < 0 {
		return ""
	}

	for _, line := range strings.Split(text[headerEnd:numStart], "\n") {
		if names := runs(line); len(names) > 0 {
			return names[0]
		}
	}
	return ""
}

// lastRun returns the last acceptable capitalized run in line.
func lastRun(line string) string {
	if names := runs(line); len(names) > 0 {
		return names[len(names)-1]
	}
	return ""
}

// runs returns the capitalized 2-4 word runs of line with institutional words
// cut out, so "Arnav Mehta Male" still yields "Arnav Mehta". Text after a
// relation marker names a relative and is ignored.
func runs(line string) []string {
	if loc := relationMarkerRe.FindStringIndex(line); loc != nil {
		line = line[:loc[0]]
	}

	var out []string
	for _, run := range nameRunRe.FindAllString(line, -1) {
		var segment []string
		flush := func() {
			if len(segment) >= 2 && len(segment) <= 4 {
				out = append(out, strings.Join(segment, " "))
			}
			segment = segment[:0]
		}
		for _, w := range strings.Fields(run) {
			// lone capitals are marker debris
			if len(w) == 1 {
				flush()
				continue
			}
			if institutionalWords[strings.Trim(strings.ToUpper(w), ".'")] {
				flush()
				continue
			}
			segment = append(segment, w)
		}
		flush()
	}
	return out
}

func isInstitutional(s string) bool {
	for _, w := range strings.Fields(strings.ToUpper(s)) {
		if institutionalWords[strings.Trim(w, ".'")] {
			return true
		}
	}
	return false
}

func hasRelationPrefix(prefix string) bool {
	for _, p := range relationPrefixes {
		if strings.Contains(prefix, p) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
