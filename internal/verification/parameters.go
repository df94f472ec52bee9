package verification

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"idverify/internal/document"
	"idverify/internal/fuzzy"
	"idverify/internal/names"
	"idverify/pkg/models"
)

// Parameter names, in evaluation order.
const (
	ParamKeywordPresence    = "Keyword Presence"
	ParamDocumentNumber     = "Document Number"
	ParamFormatValidity     = "Format Validity"
	ParamNameExtraction     = "Name Extraction"
	ParamPatternRecognition = "Pattern Recognition"
)

const (
	// PassThreshold is the minimum pass percentage of a valid document.
	PassThreshold = 60.0

	// PatternConfidenceThreshold is the minimum pattern-recognition confidence.
	PatternConfidenceThreshold = 0.5

	// MinNameLength is the shortest extracted name that counts as found.
	MinNameLength = 3
)

// Pattern-recognition weights.
const (
	patternPrimaryWeight     = 0.5
	patternAlternativeWeight = 0.3
	patternKeywordWeight     = 0.2
)

// Evidence is everything the parameters are evaluated against.
type Evidence struct {
	Text      string
	Signature document.Signature

	Keywords          []string
	PatternConfidence float64

	Number         *document.Number
	DeclaredNumber string

	Name         *names.Candidate
	DeclaredName string
	NameMatch    *fuzzy.Result
}

// Evaluator decides one parameter and explains the decision.
type Evaluator func(ev *Evidence) (passed bool, details string)

// Parameter is a named pass/fail check.
type Parameter struct {
	Name     string
	Evaluate Evaluator
}

// DefaultParameters is the ordered parameter table used by Service.
var DefaultParameters = []Parameter{
	{ParamKeywordPresence, evaluateKeywords},
	{ParamDocumentNumber, evaluateNumber},
	{ParamFormatValidity, evaluateFormat},
	{ParamNameExtraction, evaluateName},
	{ParamPatternRecognition, evaluatePattern},
}

// Scorecard is the aggregate of a parameter run.
type Scorecard struct {
	Parameters     []models.VerificationParameter
	Passed         int
	Total          int
	PassPercentage float64
	IsValid        bool
}

// Score evaluates params against ev. Every parameter counts equally.
func Score(params []Parameter, ev *Evidence) Scorecard {
	card := Scorecard{
		Parameters: make([]models.VerificationParameter, 0, len(params)),
		Total:      len(params),
	}
	for _, p := range params {
		passed, details := p.Evaluate(ev)
		if passed {
			card.Passed++
		}
		card.Parameters = append(card.Parameters, models.VerificationParameter{
			Name:    p.Name,
			Passed:  passed,
			Details: details,
		})
	}
	if card.Total > 0 {
		card.PassPercentage = float64(card.Passed) / float64(card.Total) * 100
	}
	card.IsValid = card.Total > 0 && card.PassPercentage >= PassThreshold
	return card
}

// PatternConfidence scores how strongly text carries the patterns of sig:
// 0.5 for a primary hit, 0.3 for a labelled hit and up to 0.2 for keyword
// coverage. The result never exceeds sig.MaxConfidence, and a primary hit
// lifts it to at least sig.MinConfidence.
func PatternConfidence(text string, sig document.Signature) float64 {
	var score float64
	primary := sig.MatchPrimary(text)
	if primary {
		score += patternPrimaryWeight
	}
	if sig.Alternative.MatchString(text) {
		score += patternAlternativeWeight
	}
	score += patternKeywordWeight * document.KeywordCoverage(sig, text)

	score = min(score, sig.MaxConfidence)
	if primary {
		score = max(score, sig.MinConfidence)
	}
	return score
}

func evaluateKeywords(ev *Evidence) (bool, string) {
	if len(ev.Keywords) == 0 {
		return false, fmt.Sprintf("No %s keywords found", ev.Signature.DisplayName)
	}
	return true, fmt.Sprintf("Found %d of %d keywords: %s",
		len(ev.Keywords), len(ev.Signature.Keywords), strings.Join(ev.Keywords, ", "))
}

func evaluateNumber(ev *Evidence) (bool, string) {
	declared := document.NormalizeNumber(ev.DeclaredNumber)

	switch {
	case ev.Number == nil && declared == "":
		return false, "No document number could be extracted"
	case ev.Number == nil:
		return false, "No document number could be extracted to compare with the declared number"
	case declared == "":
		return true, fmt.Sprintf("Extracted document number %s", ev.Number.Value)
	case declared == ev.Number.Value:
		return true, "Extracted document number matches the declared number"
	default:
		return false, fmt.Sprintf("Extracted document number %s does not match the declared number", ev.Number.Value)
	}
}

func evaluateFormat(ev *Evidence) (bool, string) {
	if ev.Number == nil {
		return false, "No document number to validate"
	}
	if !ev.Number.FormatValid {
		return false, fmt.Sprintf("%s does not match the %s number format (%d characters)",
			ev.Number.Value, ev.Signature.DisplayName, ev.Signature.NumberLength)
	}
	return true, fmt.Sprintf("%s matches the %s number format", ev.Number.Value, ev.Signature.DisplayName)
}

// evaluateName passes on extraction alone; the match against the declared
// name is reported but does not gate the parameter.
func evaluateName(ev *Evidence) (bool, string) {
	if ev.Name == nil || utf8.RuneCountInString(strings.TrimSpace(ev.Name.Text)) < MinNameLength {
		return false, "No holder name could be extracted"
	}

	details := fmt.Sprintf("Extracted name %q (%s)", ev.Name.Text, ev.Name.Source)
	if ev.NameMatch != nil {
		verdict := "differs from"
		if ev.NameMatch.Match {
			verdict = "matches"
		}
		details += fmt.Sprintf("; %s declared name (similarity %.2f, %s)", verdict, ev.NameMatch.Similarity, ev.NameMatch.Method)
	}
	return true, details
}

func evaluatePattern(ev *Evidence) (bool, string) {
	details := fmt.Sprintf("Pattern recognition confidence %.2f (minimum %.2f)", ev.PatternConfidence, PatternConfidenceThreshold)
	return ev.PatternConfidence >= PatternConfidenceThreshold, details
}
