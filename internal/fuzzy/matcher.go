package fuzzy

import (
	"math"
	"strings"
)

// Match methods reported in Result.Method.
const (
	MethodEmpty         = "empty"
	MethodExact         = "exact"
	MethodOCRCorrection = "ocr_correction"
	MethodFirstName     = "first_name"
	MethodWordSet       = "word_set"
	MethodOverall       = "overall"
)

const (
	ocrCorrectionSimilarity = 0.95
	firstNameThreshold      = 0.85
	firstNameWeight         = 0.7
	lastNameWeight          = 0.3
	wordSetThreshold        = 0.75
	wordTolerance           = 0.3
	overallThreshold        = 0.80
)

// Result is the outcome of comparing two names.
type Result struct {
	Similarity float64 `json:"similarity"`
	Match      bool    `json:"match"`
	Method     string  `json:"method"`
}

// CompareNames decides whether an extracted name plausibly matches a declared
// name. The layers are tried in order and the first conclusive one wins:
// exact, rn/m correction, first-name weighted, word-set containment and
// finally a whole-string comparison.
func CompareNames(extracted, declared string) Result {
	a, b := Normalize(extracted), Normalize(declared)
	if a == "" || b == "" {
		return Result{Method: MethodEmpty}
	}

	if a == b {
		return Result{Similarity: 1.0, Match: true, Method: MethodExact}
	}

	if EqualUnderOCR(a, b) {
		return Result{Similarity: ocrCorrectionSimilarity, Match: true, Method: MethodOCRCorrection}
	}

	wordsA, wordsB := strings.Fields(a), strings.Fields(b)

	if res, ok := compareFirstNames(wordsA, wordsB); ok {
		return res
	}

	if res, ok := compareWordSets(wordsA, wordsB); ok {
		return res
	}

	return compareOverall(a, b)
}

// compareFirstNames is conclusive only when the first words score at or above
// firstNameThreshold. When both names carry a last word it is blended in.
func compareFirstNames(wordsA, wordsB []string) (Result, bool) {
	first := WordScore(wordsA[0], wordsB[0])
	if first < firstNameThreshold {
		return Result{}, false
	}

	similarity := first
	if len(wordsA) >= 2 && len(wordsB) >= 2 {
		last := WordScore(wordsA[len(wordsA)-1], wordsB[len(wordsB)-1])
		similarity = firstNameWeight*first + lastNameWeight*last
	}

	return Result{Similarity: similarity, Match: true, Method: MethodFirstName}, true
}

// compareWordSets requires every word of the shorter name to have a close
// counterpart in the longer one.
func compareWordSets(wordsA, wordsB []string) (Result, bool) {
	short, long := wordsA, wordsB
	if len(short) > len(long) {
		short, long = long, short
	}

	var total float64
	for _, w := range short {
		best, found := bestWordHit(w, long)
		if !found {
			return Result{}, false
		}
		total += best
	}

	mean := total / float64(len(short))
	return Result{Similarity: mean, Match: mean >= wordSetThreshold, Method: MethodWordSet}, true
}

func bestWordHit(w string, candidates []string) (float64, bool) {
	var best float64
	found := false
	for _, c := range candidates {
		if w == c {
			return 1.0, true
		}
		if EqualUnderOCR(w, c) {
			best = math.Max(best, ocrCorrectionSimilarity)
			found = true
			continue
		}
		longer := max(runeLen(w), runeLen(c))
		allowed := max(1, int(math.Floor(wordTolerance*float64(longer))))
		if Distance(w, c) <= allowed {
			best = math.Max(best, EditSimilarity(w, c))
			found = true
		}
	}
	return best, found
}

func compareOverall(a, b string) Result {
	minDist := MinDistance(a, b)
	similarity := Combined(OCRSimilarity(a, b), PositionalSimilarity(a, b))
	return Result{
		Similarity: similarity,
		Match:      similarity >= overallThreshold || minDist <= 1,
		Method:     MethodOverall,
	}
}
