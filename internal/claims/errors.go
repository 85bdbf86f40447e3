package claims

import (
	"errors"

	"github.com/opensource-finance/heron/internal/domain"
)

// ErrInvalidAction is returned for a decision other than approve, reject or pay.
var ErrInvalidAction = errors.New("invalid action")

// ValidationError reports missing or malformed form fields.
type ValidationError = domain.ValidationError

// FileValidationError lists the supporting documents that were refused. A file may
// appear in both lists.
type FileValidationError struct {
	InvalidTypes []string `json:"invalidTypes"`
	TooLarge     []string `json:"tooLarge"`
}

func (e *FileValidationError) Error() string {
	return "file validation failed"
}

func (e *FileValidationError) Unwrap() error {
	return domain.ErrInvalidInput
}

// IneligibleError carries the reasons a claim may not be filed.
type IneligibleError struct {
	Reasons []string
}

func (e *IneligibleError) Error() string {
	return "claim is not eligible for submission"
}

func (e *IneligibleError) Unwrap() error {
	return domain.ErrConflict
}
