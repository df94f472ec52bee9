package verification

import (
	"errors"
	"fmt"
	"strings"

	"idverify/internal/document"
	"idverify/internal/ocr"
	"idverify/internal/policy"
	"idverify/pkg/models"
)

// Short-circuit messages.
const (
	MessageUnreadable    = "Document type not recognized: no text could be read from the image."
	MessageUnknownType   = "Document type not recognized. Please upload a PAN card, Aadhaar card, passport or driving licence."
	MessageFailedPrefix  = "Verification failed: "
	MessagePassedPrefix  = "Verification passed: "
	recommendationUpload = "Upload a clear, well-lit photo of the whole document with no glare or cropped edges."
)

// remediation maps a failed parameter to advice for the user.
var remediation = map[string]string{
	ParamKeywordPresence:    "Make sure the issuing authority header of the document is visible in the photo.",
	ParamDocumentNumber:     "Check that the document number you entered matches the one printed on the document.",
	ParamFormatValidity:     "Retake the photo so the document number is sharp; smudged digits are often misread.",
	ParamNameExtraction:     "Make sure your name on the document is not covered, folded or out of focus.",
	ParamPatternRecognition: "Upload the front side of an original government-issued ID rather than a copy or screenshot.",
}

func (s *Service) fillOCRFailure(report *models.VerificationReport, err error) {
	report.Message = MessageUnreadable
	report.Recommendations = []string{
		recommendationUpload,
		"Use a JPEG, PNG or PDF file under 20MB.",
		supportedTypesAdvice(),
	}
	if err != nil {
		report.Recommendations = append(report.Recommendations, "Reason: "+userFacingOCRReason(err))
	}
}

func (s *Service) fillUnknownType(report *models.VerificationReport) {
	report.Message = MessageUnknownType
	report.Recommendations = []string{
		recommendationUpload,
		supportedTypesAdvice(),
	}
}

func (s *Service) fillRoleRejection(report *models.VerificationReport, d policy.Decision) {
	report.Message = d.Message
	if rules, ok := s.policy.Rules(d.Role); ok && len(rules.AllowedTypes) > 0 {
		report.Recommendations = []string{
			fmt.Sprintf("Upload one of the documents accepted for %s verification: %s.", d.Role, displayNames(rules.AllowedTypes)),
		}
	}
}

func fillScored(report *models.VerificationReport, ev *Evidence, card Scorecard) {
	report.IsValid = card.IsValid
	report.PassPercentage = card.PassPercentage
	report.PassedParameters = card.Passed
	report.TotalParameters = card.Total
	report.Parameters = card.Parameters
	report.PatternConfidence = ev.PatternConfidence

	if ev.Number != nil {
		report.DocumentNumber = ev.Number.Value
		report.DocumentNumberValid = ev.Number.FormatValid
	}
	if ev.Name != nil {
		report.ExtractedName = ev.Name.Text
		report.NameSource = ev.Name.Source
	}
	if ev.NameMatch != nil {
		report.NameMatch = &models.NameMatch{
			Declared:   ev.DeclaredName,
			Similarity: ev.NameMatch.Similarity,
			Matched:    ev.NameMatch.Match,
			Method:     ev.NameMatch.Method,
		}
	}

	summary := fmt.Sprintf("%d of %d checks passed (%.0f%%)", card.Passed, card.Total, card.PassPercentage)
	if card.IsValid {
		report.Message = MessagePassedPrefix + summary
		return
	}
	report.Message = MessageFailedPrefix + summary
	report.Recommendations = Recommendations(report.FailedParameters())
}

// Recommendations lists the failed parameters followed by advice for each
// and a general upload tip.
func Recommendations(failed []string) []string {
	if len(failed) == 0 {
		return nil
	}
	recs := []string{"Failed checks: " + strings.Join(failed, ", ")}
	for _, name := range failed {
		if advice, ok := remediation[name]; ok {
			recs = append(recs, advice)
		}
	}
	return append(recs, recommendationUpload)
}

// userFacingOCRReason turns an OCR error into text safe to show a user.
func userFacingOCRReason(err error) string {
	switch {
	case errors.Is(err, ocr.ErrImageNotFound):
		return "the image file could not be found"
	case errors.Is(err, ocr.ErrImageTooLarge):
		return "the image is larger than 20MB"
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return "the file is not a supported image"
	case errors.Is(err, ocr.ErrEmptyDocument):
		return "no text was found in the image"
	default:
		return "the text recognition service could not process the image"
	}
}

func supportedTypesAdvice() string {
	var all []document.DocumentType
	for _, sig := range document.Signatures() {
		all = append(all, sig.Type)
	}
	return "Supported documents: " + displayNames(all) + "."
}

func displayNames(types []document.DocumentType) string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.DisplayName()
	}
	return strings.Join(out, ", ")
}
