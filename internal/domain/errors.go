package domain

import "errors"

// Sentinel errors shared by stores and services. Wrap them with fmt.Errorf("...: %w", err)
// and test with errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports per-field input problems. Errors maps a field name to a
// user-facing message.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
