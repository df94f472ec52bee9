package services

import (
	"context"

	"idverify/pkg/models"
)

// DocumentVerifier verifies identity documents for marketplace registration.
type DocumentVerifier interface {
	// VerifyDocument runs OCR on the image and evaluates the document for
	// role. declaredName and declaredNumber may be empty. A non-nil error
	// means the request itself was invalid; every document problem is
	// reported through an invalid report instead.
	VerifyDocument(ctx context.Context, imagePath, role, declaredName, declaredNumber string) (*models.VerificationReport, error)

	// VerifyText evaluates already-transcribed text without OCR.
	VerifyText(ctx context.Context, text, role, declaredName, declaredNumber string) (*models.VerificationReport, error)
}

// VerificationRequest is one document in a batch run.
type VerificationRequest struct {
	ImagePath      string `json:"image_path" yaml:"image_path"`
	Role           string `json:"role" yaml:"role"`
	DeclaredName   string `json:"declared_name,omitempty" yaml:"declared_name"`
	DeclaredNumber string `json:"declared_number,omitempty" yaml:"declared_number"`
}

// VerificationResult pairs a request with its report or error.
type VerificationResult struct {
	Request VerificationRequest
	Report  *models.VerificationReport
	Err     error
}
