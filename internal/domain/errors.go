package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Common domain errors returned by services and stores.
var (
	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateJudgment indicates that the user already judged the decision.
	ErrDuplicateJudgment = errors.New("duplicate judgment")

	// ErrDecisionClosed indicates that a decision no longer accepts judgments.
	ErrDecisionClosed = errors.New("decision is not accepting judgments")

	// ErrUnsupportedFileType indicates an attachment MIME type outside the allow-list.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge indicates an attachment above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnauthenticated indicates that no principal accompanied the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrProviderUnavailable indicates that the coaching provider failed.
	ErrProviderUnavailable = errors.New("coaching provider unavailable")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Message returns the first failure, suitable for an API response.
func (e *ValidationError) Message() string {
	if len(e.Errors) == 0 {
		return "invalid " + e.Entity
	}
	return e.Errors[0]
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// structError runs the shared validator over v and converts field failures
// into a ValidationError. It returns nil when v is valid.
func structError(entity string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %s: %w", entity, err)
	}

	verr := NewValidationError(entity)
	for _, fe := range fieldErrs {
		verr.AddError(fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gt":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
