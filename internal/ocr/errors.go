package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrImageNotFound is returned when the image path does not exist.
	ErrImageNotFound = errors.New("image file not found")

	// ErrImageTooLarge is returned when the image exceeds MaxImageSizeBytes.
	ErrImageTooLarge = errors.New("image file size exceeds the maximum limit (20MB)")

	// ErrUnsupportedImage is returned when the file is not a supported image format.
	ErrUnsupportedImage = errors.New("unsupported or corrupted image")

	// ErrOCRFailed is returned when the OCR engine fails to process the image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrMissingAPIKey is returned when the OpenAI provider has no API key.
	ErrMissingAPIKey = errors.New("missing OpenAI API key: set OPENAI_API_KEY environment variable")

	// ErrInvalidConfiguration is returned when a provider is misconfigured.
	ErrInvalidConfiguration = errors.New("invalid OCR provider configuration")

	// ErrEmptyDocument is returned when the image contains no readable text.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrContextCanceled is returned when the context is canceled during processing.
	ErrContextCanceled = errors.New("OCR processing was canceled")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "ExtractText", "NewGoogleVisionService").
	Op string

	// Provider is the engine that failed, if known.
	Provider string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	op := e.Op
	if e.Provider != "" {
		op = e.Provider + "." + e.Op
	}
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op, provider string, err error, details string) *OCRError {
	return &OCRError{
		Op:       op,
		Provider: provider,
		Err:      err,
		Details:  details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op, provider string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, provider, err, details)
}
