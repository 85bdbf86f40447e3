package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/opensource-finance/heron/internal/domain"
)

// Request body validation tool
var validate = newValidator()

var fieldValidators = map[string]func(validator.FieldLevel) bool{
	"emailAddress": validateEmailAddress,
	"appRole":      validateAppRole,
	"notBlank":     validateNotBlank,
}

var validationMessages = map[string]string{
	"required":     "This field is required.",
	"notBlank":     "This field is required.",
	"emailAddress": "Enter a valid email address.",
	"appRole":      "Unknown role.",
	"min":          "Must not be negative.",
}

func newValidator() *validator.Validate {
	v := validator.New()

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range fieldValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("failed to register validation for " + tag + ": " + err.Error())
		}
	}
	return v
}

func validateEmailAddress(field validator.FieldLevel) bool {
	return domain.ValidEmail(strings.TrimSpace(field.Field().String()))
}

func validateAppRole(field validator.FieldLevel) bool {
	_, ok := domain.ParseRole(field.Field().String())
	return ok
}

func validateNotBlank(field validator.FieldLevel) bool {
	return strings.TrimSpace(field.Field().String()) != ""
}

// validateRequest checks v against its struct tags. It returns nil or a
// *domain.ValidationError keyed by JSON field name.
func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		msg, ok := validationMessages[fe.Tag()]
		if !ok {
			msg = "Invalid value."
		}
		out[fe.Field()] = msg
	}
	return &domain.ValidationError{Errors: out}
}

// CreateUserRequest is the request body for POST /users.
type CreateUserRequest struct {
	Email string `json:"email" validate:"required,emailAddress"`
	Name  string `json:"name" validate:"notBlank"`
	Role  string `json:"role" validate:"required,appRole"`
}

// CreateRuleRequest is the request body for creating a fraud rule.
type CreateRuleRequest struct {
	ID          string `json:"id" validate:"notBlank"`
	Name        string `json:"name" validate:"notBlank"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression" validate:"notBlank"`
	Points      int    `json:"points" validate:"min=0"`
	Reason      string `json:"reason" validate:"notBlank"`
	Priority    int    `json:"priority"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// DecisionRequest is the request body for POST /claims/{id}/decision.
type DecisionRequest struct {
	Action string `json:"action"`
}

// PolicyStatusRequest is the request body for PATCH /policies/{id}.
type PolicyStatusRequest struct {
	Status string `json:"status" validate:"notBlank"`
}

// MarkReadRequest is the request body for PATCH /notifications.
type MarkReadRequest struct {
	ID string `json:"id" validate:"notBlank"`
}

// CreateWorkflowRequest is the request body for POST /workflows.
type CreateWorkflowRequest struct {
	Key  string `json:"key" validate:"notBlank"`
	Name string `json:"name,omitempty"`
}
