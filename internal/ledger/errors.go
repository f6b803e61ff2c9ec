package ledger

import "fmt"

// ValidationReason classifies why a submission or field was rejected.
type ValidationReason string

const (
	// ReasonRequired indicates a required field was missing or empty
	ReasonRequired ValidationReason = "required"
	// ReasonNegative indicates a submitted quantity was below zero
	ReasonNegative ValidationReason = "negative"
	// ReasonExceedsRequested indicates a quantity above the requested quantity
	ReasonExceedsRequested ValidationReason = "exceedsRequested"
	// ReasonAllZero indicates every quantity in the batch was zero or below
	ReasonAllZero ValidationReason = "allZero"
	// ReasonBadFormat indicates a field failed format validation
	ReasonBadFormat ValidationReason = "badFormat"
)

// ValidationError is a local, pre-submission failure. It blocks the
// transition it was raised for and is never sent to the backend.
type ValidationError struct {
	Reason ValidationReason
	Field  string
	Detail string
	Max    int64
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed (%s)", e.Reason)
	if e.Field != "" {
		msg += fmt.Sprintf(" on %s", e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// NewValidationError creates a validation error for a field.
func NewValidationError(reason ValidationReason, field, detail string) *ValidationError {
	return &ValidationError{Reason: reason, Field: field, Detail: detail}
}
