package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an engine failure that is not a compilation failure: the
// plan could not be turned into a compilation, or the run could not be
// journaled. Compilation failures are reported in Result.Err instead.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Plan names the plan being compiled.
	Plan string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidPlan indicates the plan cannot be built into a compilation.
	ErrCodeInvalidPlan RuntimeErrorCode = "INVALID_PLAN"

	// ErrCodeJournal indicates the run could not be written to the store.
	ErrCodeJournal RuntimeErrorCode = "JOURNAL_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Plan != "" {
		msg = fmt.Sprintf("%s (plan=%s)", msg, e.Plan)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsInvalidPlan returns true if err is an invalid plan error.
// Uses errors.As to handle wrapped errors.
func IsInvalidPlan(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidPlan
	}
	return false
}

// NewInvalidPlanError creates a RuntimeError for a plan that cannot be built.
func NewInvalidPlanError(plan, message string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidPlan,
		Message: message,
		Plan:    plan,
		Err:     cause,
	}
}

// NewJournalError creates a RuntimeError for a failed store write.
func NewJournalError(plan string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeJournal,
		Message: "failed to journal run",
		Plan:    plan,
		Err:     cause,
	}
}
