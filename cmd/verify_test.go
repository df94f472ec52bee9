package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/pkg/models"
	"idverify/pkg/services"
)

func TestFormatReport(t *testing.T) {
	report := &models.VerificationReport{
		VerificationID:           "3f1c",
		Role:                     "tenant",
		DocumentType:             "AADHAAR",
		ClassificationConfidence: 0.95,
		IsValid:                  false,
		PassedParameters:         2,
		TotalParameters:          5,
		PassPercentage:           40,
		DocumentNumber:           "1234567890I2",
		Message:                  "Verification failed: 2 of 5 checks passed (40%)",
		Parameters: []models.VerificationParameter{
			{Name: "Keyword Presence", Passed: true, Details: "Found 3 of 5 keywords"},
			{Name: "Format Validity", Passed: false, Details: "bad format"},
		},
		Recommendations: []string{"Failed checks: Format Validity"},
	}

	out := formatReport(report)
	assert.Contains(t, out, "Aadhaar Card (95% confidence)")
	assert.Contains(t, out, "INVALID (2/5 checks, 40%)")
	assert.Contains(t, out, "1234567890I2 (invalid format)")
	assert.Contains(t, out, "❌ Format Validity")
	assert.Contains(t, out, "  - Failed checks: Format Validity")
}

func TestVerdictStatus(t *testing.T) {
	assert.Equal(t, "error", verdictStatus(nil))
	assert.Equal(t, "success", verdictStatus(&models.VerificationReport{IsValid: true}))
	assert.Equal(t, "warning", verdictStatus(&models.VerificationReport{IsValid: true, NameMatch: &models.NameMatch{}}))
	assert.Equal(t, "rejected", verdictStatus(&models.VerificationReport{}))
}

func TestLoadRequestsManifest(t *testing.T) {
	dir := t.TempDir()

	yamlManifest := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(yamlManifest, []byte(`
- image_path: a.jpg
  role: owner
  declared_name: Rahul Sharma
  declared_number: ABCDE1234F
- image_path: /abs/b.png
`), 0644))

	reqs, err := loadRequests(yamlManifest, "tenant")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), reqs[0].ImagePath)
	assert.Equal(t, "owner", reqs[0].Role)
	assert.Equal(t, "Rahul Sharma", reqs[0].DeclaredName)
	assert.Equal(t, "/abs/b.png", reqs[1].ImagePath)
	assert.Equal(t, "tenant", reqs[1].Role)

	jsonManifest := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(jsonManifest, []byte(`[{"image_path": "c.jpg", "role": "admin"}]`), 0644))
	reqs, err = loadRequests(jsonManifest, "")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "admin", reqs[0].Role)

	_, err = loadRequests(yamlManifest, "")
	assert.ErrorContains(t, err, "has no role")
}

func TestLoadRequestsFolder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.JPG", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	reqs, err := loadRequests(dir, "owner")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, "owner", r.Role)
		assert.False(t, strings.HasSuffix(r.ImagePath, ".txt"))
	}

	_, err = loadRequests(dir, "")
	assert.Error(t, err)

	_, err = loadRequests(filepath.Join(dir, "missing"), "owner")
	assert.Error(t, err)
}

type stubVerifier struct{}

func (stubVerifier) VerifyDocument(_ context.Context, imagePath, role, _, _ string) (*models.VerificationReport, error) {
	if role == "landlord" {
		return nil, errors.New("unknown role")
	}
	return &models.VerificationReport{VerificationID: imagePath, Role: role, IsValid: strings.HasPrefix(imagePath, "ok")}, nil
}

func (stubVerifier) VerifyText(context.Context, string, string, string, string) (*models.VerificationReport, error) {
	return nil, errors.New("not used")
}

func TestVerifyInParallelKeepsOrder(t *testing.T) {
	requests := []services.VerificationRequest{
		{ImagePath: "ok-1.jpg", Role: "tenant"},
		{ImagePath: "bad-2.jpg", Role: "tenant"},
		{ImagePath: "ok-3.jpg", Role: "landlord"},
		{ImagePath: "ok-4.jpg", Role: "owner"},
	}

	results := verifyInParallel(context.Background(), stubVerifier{}, requests, 3, zerolog.Nop(), false)
	require.Len(t, results, len(requests))

	for i, res := range results {
		assert.Equal(t, requests[i], res.Request)
	}
	assert.Equal(t, "success", resultStatus(results[0]))
	assert.Equal(t, "rejected", resultStatus(results[1]))
	assert.Equal(t, "error", resultStatus(results[2]))
	assert.Equal(t, "ok-4.jpg", results[3].Report.VerificationID)
}
