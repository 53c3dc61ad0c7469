package marketplace

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates required fields were missing or malformed.
	// Rejected before any write is attempted.
	ErrValidation = errors.New("marketplace: required fields missing or malformed")

	// ErrConflict indicates the email is already registered.
	ErrConflict = errors.New("marketplace: email already registered")

	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("marketplace: user not found")

	// ErrGadgetNotFound indicates the referenced gadget does not exist.
	ErrGadgetNotFound = errors.New("marketplace: gadget not found")

	// ErrChainNotFound indicates the user's message chain does not exist.
	ErrChainNotFound = errors.New("marketplace: message chain not found")

	// ErrLoginRestricted indicates the login window is closed after repeated
	// failed attempts.
	ErrLoginRestricted = errors.New("marketplace: login temporarily restricted")
)

// CompensationError reports a saga whose rollback itself failed, leaving
// residual state that needs operator attention. Unwrap yields the original
// saga failure, so callers can still classify the root cause.
type CompensationError struct {
	Saga    string
	Step    string
	Cause   error
	UndoErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("marketplace: %s saga failed (%v) and rollback step %q also failed: %v",
		e.Saga, e.Cause, e.Step, e.UndoErr)
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}
