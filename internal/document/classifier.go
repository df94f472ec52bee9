package document

import (
	"math"
	"strings"
)

const (
	primaryWeight     = 0.6
	alternativeWeight = 0.3
	keywordWeight     = 0.4

	// ClassificationThreshold is the score a type must exceed to be accepted.
	ClassificationThreshold = 0.5
)

// Classification is the outcome of scoring OCR text against every signature.
type Classification struct {
	Type       DocumentType             `json:"type"`
	Confidence float64                  `json:"confidence"`
	Scores     map[DocumentType]float64 `json:"scores,omitempty"`
}

// Classify scores text against each known signature and returns the best
// type, or Unknown when no score exceeds ClassificationThreshold.
func Classify(text string) Classification {
	lower := strings.ToLower(text)
	result := Classification{
		Type:   Unknown,
		Scores: make(map[DocumentType]float64, len(signatures)),
	}

	best := 0.0
	for _, sig := range signatures {
		score := scoreSignature(sig, text, lower)
		result.Scores[sig.Type] = score
		if score > best {
			best = score
			if score > ClassificationThreshold {
				result.Type = sig.Type
			}
		}
	}

	result.Confidence = math.Min(best, 1.0)
	return result
}

func scoreSignature(sig Signature, text, lower string) float64 {
	var score float64
	if sig.MatchPrimary(text) {
		score += primaryWeight
	}
	if sig.Alternative.MatchString(text) {
		score += alternativeWeight
	}
	score += keywordWeight * KeywordCoverage(sig, lower)
	return score
}

// KeywordsFound returns the keywords of sig present in text as whole words,
// case-insensitively. "pan" is found in "PAN No" but not in "Company".
func KeywordsFound(sig Signature, text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range sig.Keywords {
		if containsWord(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// containsWord reports whether kw occurs in s with no letter or digit
// directly on either side.
func containsWord(s, kw string) bool {
	for offset := 0; offset <= len(s)-len(kw); {
		i := strings.Index(s[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw)
		if !isWordByte(s, start-1) && !isWordByte(s, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	b := s[i]
	return b >= 'a' && b <= 'z' || isDigit(b) || b >= 0x80
}

// KeywordCoverage returns the fraction of sig's keywords present in text.
func KeywordCoverage(sig Signature, text string) float64 {
	if len(sig.Keywords) == 0 {
		return 0
	}
	return float64(len(KeywordsFound(sig, text))) / float64(len(sig.Keywords))
}
