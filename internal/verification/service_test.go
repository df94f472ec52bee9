package verification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/document"
	"idverify/internal/fuzzy"
	"idverify/internal/metrics"
	"idverify/internal/names"
	"idverify/internal/ocr"
	"idverify/internal/policy"
)

const (
	aadhaarText = "Government of India\nUnique Identification Authority of India\nAadhaar\nArnav Mehta\nDate of Birth: 01/01/1995\nAadhaar No: 1234 5678 9012"

	// Keywords and a clean number but no name.
	aadhaarNoNameText = "Government of India\nUnique Identification Authority of India\nAadhaar No: 1234 5678 9012"

	// The number was misread (I for 1), so only the labelled pattern finds it.
	aadhaarMisreadText = "Government of India\nUnique Identification Authority of India\nAadhaar No: 1234 5678 90I2"

	aadhaarVIDText = "Government of India\nUnique Identification Authority of India\nArnav Mehta\nVID: 9134 5678 9012 3456\nAadhaar No: 1234 5678 9012"

	drivingLicenceText = "Transport Department\nDriving Licence\nDL No: MH14 20110012345\nDate of Issue 01-02-2011"
)

type fakeExtractor struct {
	mu     sync.Mutex
	result *ocr.Extraction
	err    error
	paths  []string
}

func (f *fakeExtractor) ExtractText(ctx context.Context, imagePath string) (*ocr.Extraction, error) {
	f.mu.Lock()
	f.paths = append(f.paths, imagePath)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeExtractor) Name() string { return "fake" }

func newTestService(extractor ocr.TextExtractor, m *metrics.Metrics) *Service {
	return NewService(extractor, Config{Policy: policy.Default(), Metrics: m})
}

func TestVerifyDocumentEndToEnd(t *testing.T) {
	ext := &fakeExtractor{result: &ocr.Extraction{
		Text:       aadhaarText,
		Confidence: 0.93,
		Provider:   ocr.ProviderGoogleVision,
	}}
	svc := newTestService(ext, nil)

	report, err := svc.VerifyDocument(context.Background(), "aadhaar.jpg", "tenant", "Arnav Mehta", "1234-5678-9012")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, []string{"aadhaar.jpg"}, ext.paths)
	assert.NotEmpty(t, report.VerificationID)
	assert.Equal(t, "tenant", report.Role)
	assert.True(t, report.IsValid)
	assert.Equal(t, string(document.Aadhaar), report.DocumentType)
	assert.Equal(t, 5, report.PassedParameters)
	assert.Equal(t, 5, report.TotalParameters)
	assert.InDelta(t, 100.0, report.PassPercentage, 1e-9)
	assert.Equal(t, "123456789012", report.DocumentNumber)
	assert.True(t, report.DocumentNumberValid)
	assert.Equal(t, "Arnav Mehta", report.ExtractedName)
	assert.Equal(t, names.SourceHint, report.NameSource)
	assert.Equal(t, ocr.ProviderGoogleVision, report.OCRProvider)
	assert.InDelta(t, 0.93, report.OCRConfidence, 1e-9)
	assert.InDelta(t, 0.6, report.AdvisoryMinConfidence, 1e-9)
	assert.Empty(t, report.Recommendations)

	require.NotNil(t, report.NameMatch)
	assert.True(t, report.NameMatch.Matched)
	assert.Equal(t, fuzzy.MethodExact, report.NameMatch.Method)

	require.Len(t, report.Parameters, 5)
	for i, p := range DefaultParameters {
		assert.Equal(t, p.Name, report.Parameters[i].Name)
		assert.True(t, report.Parameters[i].Passed, p.Name)
	}
}

func TestVerifyDocumentUsesWordPositions(t *testing.T) {
	ext := &fakeExtractor{result: &ocr.Extraction{
		Text:       aadhaarNoNameText,
		Confidence: 0.9,
		Provider:   ocr.ProviderGoogleVision,
		PageHeight: 1000,
		Words: []ocr.Word{
			{Text: "Arnav", Confidence: 0.95, BoundingBox: ocr.BoundingBox{X: 100, Y: 200, Width: 50, Height: 24}},
			{Text: "Mehta", Confidence: 0.9, BoundingBox: ocr.BoundingBox{X: 200, Y: 202, Width: 50, Height: 24}},
		},
	}}
	svc := newTestService(ext, nil)

	report, err := svc.VerifyDocument(context.Background(), "aadhaar.jpg", "tenant", "", "")
	require.NoError(t, err)

	assert.Equal(t, "Arnav Mehta", report.ExtractedName)
	assert.Equal(t, names.SourceWordPosition, report.NameSource)
	assert.True(t, report.IsValid)
}

func TestVerifyTextScoring(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		declaredName   string
		declaredNumber string
		valid          bool
		percentage     float64
		passed         map[string]bool
	}{
		{
			name:           "three of five is valid",
			text:           aadhaarNoNameText,
			declaredNumber: "999999999999",
			valid:          true,
			percentage:     60,
			passed: map[string]bool{
				ParamKeywordPresence:    true,
				ParamDocumentNumber:     false,
				ParamFormatValidity:     true,
				ParamNameExtraction:     false,
				ParamPatternRecognition: true,
			},
		},
		{
			name:       "two of five is invalid",
			text:       aadhaarMisreadText,
			valid:      false,
			percentage: 40,
			passed: map[string]bool{
				ParamKeywordPresence:    true,
				ParamDocumentNumber:     true,
				ParamFormatValidity:     false,
				ParamNameExtraction:     false,
				ParamPatternRecognition: false,
			},
		},
		{
			name:           "name mismatch does not fail extraction",
			text:           aadhaarText,
			declaredName:   "Priya Patel",
			declaredNumber: "123456789012",
			valid:          true,
			percentage:     100,
			passed: map[string]bool{
				ParamKeywordPresence:    true,
				ParamDocumentNumber:     true,
				ParamFormatValidity:     true,
				ParamNameExtraction:     true,
				ParamPatternRecognition: true,
			},
		},
		{
			name:           "virtual id does not shadow the aadhaar number",
			text:           aadhaarVIDText,
			declaredNumber: "1234 5678 9012",
			valid:          true,
			percentage:     100,
			passed: map[string]bool{
				ParamKeywordPresence:    true,
				ParamDocumentNumber:     true,
				ParamFormatValidity:     true,
				ParamNameExtraction:     true,
				ParamPatternRecognition: true,
			},
		},
	}

	svc := newTestService(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := svc.VerifyText(context.Background(), tt.text, "tenant", tt.declaredName, tt.declaredNumber)
			require.NoError(t, err)

			assert.Equal(t, string(document.Aadhaar), report.DocumentType)
			assert.Equal(t, tt.valid, report.IsValid)
			assert.InDelta(t, tt.percentage, report.PassPercentage, 1e-9)
			require.Len(t, report.Parameters, len(tt.passed))
			for _, p := range report.Parameters {
				assert.Equal(t, tt.passed[p.Name], p.Passed, "%s: %s", p.Name, p.Details)
			}

			if tt.valid {
				assert.Empty(t, report.Recommendations)
			} else {
				require.NotEmpty(t, report.Recommendations)
				assert.Equal(t, "Failed checks: Format Validity, Name Extraction, Pattern Recognition", report.Recommendations[0])
			}
		})
	}
}

func TestVerifyTextNameMismatchReported(t *testing.T) {
	svc := newTestService(nil, nil)
	report, err := svc.VerifyText(context.Background(), aadhaarText, "tenant", "Priya Patel", "")
	require.NoError(t, err)

	assert.Equal(t, "Arnav Mehta", report.ExtractedName)
	require.NotNil(t, report.NameMatch)
	assert.False(t, report.NameMatch.Matched)
	assert.Equal(t, "Priya Patel", report.NameMatch.Declared)
}

func TestVerifyTextRoleRejection(t *testing.T) {
	m := metrics.New()
	svc := newTestService(nil, m)

	report, err := svc.VerifyText(context.Background(), drivingLicenceText, "owner", "", "")
	require.NoError(t, err)

	assert.False(t, report.IsValid)
	assert.Equal(t, string(document.DrivingLicense), report.DocumentType)
	assert.Contains(t, report.Message, "Driving Licence is not accepted for owner verification")
	assert.Empty(t, report.Parameters)
	assert.Zero(t, report.PassedParameters)
	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "PAN Card, Aadhaar Card, Passport")

	assert.Equal(t, 1.0, outcomeCount(t, m, StatusRoleRejected, "DRIVING_LICENSE", "owner"))

	// The same licence is fine for a tenant.
	report, err = svc.VerifyText(context.Background(), drivingLicenceText, "tenant", "", "")
	require.NoError(t, err)
	assert.Len(t, report.Parameters, 5)
	assert.NotContains(t, report.Message, "not accepted")
}

func TestVerifyTextUnknownType(t *testing.T) {
	svc := newTestService(nil, nil)

	for _, text := range []string{"", "Electricity bill for March", "random words 12345"} {
		report, err := svc.VerifyText(context.Background(), text, "admin", "", "")
		require.NoError(t, err)

		assert.False(t, report.IsValid)
		assert.Equal(t, string(document.Unknown), report.DocumentType)
		assert.Equal(t, MessageUnknownType, report.Message)
		assert.Empty(t, report.Parameters)
		assert.Equal(t, 5, report.TotalParameters)
		assert.NotEmpty(t, report.Recommendations)
	}
}

func TestVerifyDocumentOCRFailure(t *testing.T) {
	m := metrics.New()
	ext := &fakeExtractor{err: ocr.NewOCRError("ExtractText", "fake", ocr.ErrImageNotFound, "missing.jpg")}
	svc := newTestService(ext, m)

	report, err := svc.VerifyDocument(context.Background(), "missing.jpg", "tenant", "Arnav Mehta", "")
	require.NoError(t, err)

	assert.False(t, report.IsValid)
	assert.Equal(t, string(document.Unknown), report.DocumentType)
	assert.Equal(t, MessageUnreadable, report.Message)
	assert.Equal(t, "fake", report.OCRProvider)
	assert.Contains(t, report.Recommendations, "Reason: the image file could not be found")
	assert.Equal(t, 1.0, outcomeCount(t, m, StatusOCRFailed, "UNKNOWN", "tenant"))
}

func TestVerifyRequestErrors(t *testing.T) {
	svc := newTestService(&fakeExtractor{result: &ocr.Extraction{Text: aadhaarText}}, nil)
	ctx := context.Background()

	_, err := svc.VerifyDocument(ctx, "a.jpg", "landlord", "", "")
	assert.ErrorIs(t, err, policy.ErrUnknownRole)

	_, err = svc.VerifyText(ctx, aadhaarText, "", "", "")
	assert.ErrorIs(t, err, policy.ErrUnknownRole)

	_, err = svc.VerifyDocument(ctx, "  ", "tenant", "", "")
	assert.ErrorIs(t, err, ErrEmptyImagePath)

	var verr *VerificationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "VerifyDocument", verr.Op)

	_, err = newTestService(nil, nil).VerifyDocument(ctx, "a.jpg", "tenant", "", "")
	assert.ErrorIs(t, err, ocr.ErrInvalidConfiguration)
}

func TestVerifyDocumentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(&fakeExtractor{result: &ocr.Extraction{Text: aadhaarText}}, nil)
	report, err := svc.VerifyDocument(ctx, "a.jpg", "tenant", "", "")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyRoleIsCaseInsensitive(t *testing.T) {
	svc := newTestService(nil, nil)
	report, err := svc.VerifyText(context.Background(), aadhaarText, " Owner ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "owner", report.Role)
	assert.InDelta(t, 0.7, report.AdvisoryMinConfidence, 1e-9)
}

func TestVerifyConcurrentCalls(t *testing.T) {
	svc := newTestService(nil, metrics.New())

	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := svc.VerifyText(context.Background(), aadhaarText, "tenant", "Arnav Mehta", "")
			if assert.NoError(t, err) {
				assert.True(t, report.IsValid)
				ids <- report.VerificationID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate verification id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 20)
}

func outcomeCount(t *testing.T, m *metrics.Metrics, status, documentType, role string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	want := map[string]string{"status": status, "document_type": documentType, "role": role}
	for _, mf := range families {
		if mf.GetName() != "idverify_verification_outcomes_total" {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
