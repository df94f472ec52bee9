package models

import "time"

// VerificationReport is the result of verifying one identity document. It is
// the only artifact handed back to the registration flow.
type VerificationReport struct {
	// Core identifiers
	VerificationID string `json:"verification_id"` // UUID of this run
	Role           string `json:"role"`            // tenant, owner, admin

	// Verdict
	IsValid          bool    `json:"is_valid"`
	PassPercentage   float64 `json:"pass_percentage"` // passed / total * 100
	PassedParameters int     `json:"passed_parameters"`
	TotalParameters  int     `json:"total_parameters"`

	// Message explains a short-circuit failure (OCR failure, unrecognized
	// type, role rejection). Empty when all parameters were evaluated.
	Message string `json:"message,omitempty"`

	// Classification
	DocumentType             string  `json:"document_type"` // PAN, AADHAAR, PASSPORT, DRIVING_LICENSE, UNKNOWN
	ClassificationConfidence float64 `json:"classification_confidence"`

	// Extracted fields
	DocumentNumber      string     `json:"document_number,omitempty"` // Normalized identifier
	DocumentNumberValid bool       `json:"document_number_valid"`     // Passes the strict format check
	ExtractedName       string     `json:"extracted_name,omitempty"`
	NameSource          string     `json:"name_source,omitempty"` // Name extraction strategy
	NameMatch           *NameMatch `json:"name_match,omitempty"`

	// Parameters in evaluation order
	Parameters []VerificationParameter `json:"parameters"`

	// Recommendations tell the user how to get a passing result
	Recommendations []string `json:"recommendations,omitempty"`

	// Pattern-recognition confidence and the advisory role minimum
	PatternConfidence     float64 `json:"pattern_confidence"`
	AdvisoryMinConfidence float64 `json:"advisory_min_confidence,omitempty"`

	// OCR metadata
	OCRProvider   string  `json:"ocr_provider,omitempty"`
	OCRConfidence float64 `json:"ocr_confidence"`

	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// VerificationParameter is one pass/fail check.
type VerificationParameter struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// NameMatch compares the extracted name with the declared one. It is
// informational and never changes the verdict.
type NameMatch struct {
	Declared   string  `json:"declared"`
	Similarity float64 `json:"similarity"`
	Matched    bool    `json:"matched"`
	Method     string  `json:"method"`
}

// FailedParameters returns the names of parameters that did not pass.
func (r *VerificationReport) FailedParameters() []string {
	var failed []string
	for _, p := range r.Parameters {
		if !p.Passed {
			failed = append(failed, p.Name)
		}
	}
	return failed
}
