package verification

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyImagePath is returned when no image is supplied.
	ErrEmptyImagePath = errors.New("image path is required")

	// ErrCanceled is returned when the caller's context ends before OCR completes.
	ErrCanceled = errors.New("verification was canceled")
)

// VerificationError wraps request-level failures. Document problems are never
// errors; they produce an invalid report.
type VerificationError struct {
	// Op is the operation that failed (e.g., "VerifyDocument").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("verification: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("verification: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// WrapVerificationError wraps err unless it already is a VerificationError.
func WrapVerificationError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var verr *VerificationError
	if errors.As(err, &verr) {
		return err
	}

	return &VerificationError{Op: op, Err: err, Details: details}
}
