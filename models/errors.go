package models

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. The boundary layer maps these to HTTP statuses;
// the core never swallows or retries them.

// ValidationError reports bad input or a business-rule violation. The Code is
// machine readable ("min4week", "overpayment", ...); Message is for display.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(code string, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// StateError reports an operation invalid for the current lifecycle state,
// e.g. selling non-defaulted collateral.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewStateError(code string, message string) *StateError {
	return &StateError{Code: code, Message: message}
}

// NotFoundError reports an absent Loan/Borrower/Collateral/Expense.
type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func NewNotFoundError(resource string, id int) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports concurrent mutation; the caller should retry the
// whole operation rather than resubmit raw data.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

var ErrUnauthorized = errors.New("unauthorized")

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
