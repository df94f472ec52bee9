// Package fuzzy provides approximate string matching for personal names read
// from photographed identity documents.
//
// All comparisons are layered on three primitives:
//   - EditSimilarity: normalized Levenshtein similarity (1 - distance/maxLength)
//   - OCRSimilarity: the best EditSimilarity over the rn/m correction hypotheses
//   - PositionalSimilarity: aligned character comparison that gives partial
//     credit where one side reads "RN" and the other "M"
//
// The most frequent misread of the OCR engines used for ID cards is the letter
// pair "rn" transcribed as "m", so every comparator considers that correction.
package fuzzy

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

const (
	// EditWeight is the weight of the edit-distance measure in a combined score.
	EditWeight = 0.6

	// PositionalWeight is the weight of the positional measure in a combined score.
	PositionalWeight = 0.4

	// rnCredit is the partial credit for an aligned RN/M pair.
	rnCredit = 0.8
)

// Normalize uppercases s, collapses runs of whitespace and trims it.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// Distance returns the Levenshtein distance between a and b, counted in runes.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// EditSimilarity converts the edit distance of a and b into [0,1].
func EditSimilarity(a, b string) float64 {
	maxLen := max(runeLen(a), runeLen(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(a, b))/float64(maxLen)
}

// CorrectOCR rewrites every M surrounded by letters as RN, keeping the case of
// the original M. "AMAV" becomes "ARNAV".
func CorrectOCR(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if (r == 'M' || r == 'm') && i > 0 && i < len(runes)-1 &&
			unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]) {
			if r == 'm' {
				b.WriteString("rn")
			} else {
				b.WriteString("RN")
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// variants returns the four (a, b) pairings of original and corrected strings.
func variants(a, b string) [4][2]string {
	ca, cb := CorrectOCR(a), CorrectOCR(b)
	return [4][2]string{{a, b}, {ca, b}, {a, cb}, {ca, cb}}
}

// MinDistance returns the smallest edit distance across the rn/m variants.
func MinDistance(a, b string) int {
	best := -1
	for _, v := range variants(a, b) {
		if d := Distance(v[0], v[1]); best < 0 || d < best {
			best = d
		}
	}
	return best
}

// OCRSimilarity returns the best EditSimilarity across the rn/m variants.
func OCRSimilarity(a, b string) float64 {
	best := 0.0
	for _, v := range variants(a, b) {
		if s := EditSimilarity(v[0], v[1]); s > best {
			best = s
		}
	}
	return best
}

// EqualUnderOCR reports whether a and b are equal as-is or after applying the
// rn/m correction to either or both sides.
func EqualUnderOCR(a, b string) bool {
	for _, v := range variants(a, b) {
		if v[0] == v[1] {
			return true
		}
	}
	return false
}

// PositionalSimilarity walks both strings in lockstep. Equal characters score
// 1, an "RN" on one side aligned with "M" on the other scores 0.8 and consumes
// both letters of the pair, anything else scores 0. The total is divided by
// the number of aligned steps plus the unmatched tail.
func PositionalSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}

	var score float64
	var steps int
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		switch {
		case ra[i] == rb[j]:
			score++
			i++
			j++
		case isRN(ra, i) && rb[j] == 'M':
			score += rnCredit
			i += 2
			j++
		case isRN(rb, j) && ra[i] == 'M':
			score += rnCredit
			i++
			j += 2
		default:
			i++
			j++
		}
		steps++
	}
	steps += (len(ra) - i) + (len(rb) - j)

	return score / float64(steps)
}

// Combined blends edit-distance and positional similarity with the 0.6/0.4
// weighting used throughout the matcher.
func Combined(edit, positional float64) float64 {
	return EditWeight*edit + PositionalWeight*positional
}

// WordScore compares two single words using OCR-aware edit similarity and
// positional similarity.
func WordScore(a, b string) float64 {
	return Combined(OCRSimilarity(a, b), PositionalSimilarity(a, b))
}

func isRN(r []rune, i int) bool {
	return i+1 < len(r) && r[i] == 'R' && r[i+1] == 'N'
}

func runeLen(s string) int {
	return len([]rune(s))
}
