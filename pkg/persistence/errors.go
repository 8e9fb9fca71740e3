// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTicketNotFound indicates a ticket was not found by the given number.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTicketAlreadyExists indicates a ticket with the same number already exists.
	ErrTicketAlreadyExists = errors.New("ticket already exists")

	// ErrConflict indicates a conditional save lost to a concurrent writer: the
	// stored document's version no longer matches the version the caller loaded.
	ErrConflict = errors.New("ticket was modified concurrently")
)

// TicketError wraps ticket-related errors with operation context.
type TicketError struct {
	Op     string // Operation being performed (e.g., "GetByNumber", "Save")
	Number string // Ticket number if applicable
	Err    error  // Underlying error
}

func (e *TicketError) Error() string {
	return fmt.Sprintf("%s operation failed for ticket %s: %v", e.Op, e.Number, e.Err)
}

func (e *TicketError) Unwrap() error {
	return e.Err
}

func (e *TicketError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTicketError creates a new ticket error with context.
func NewTicketError(op, number string, err error) *TicketError {
	return &TicketError{
		Op:     op,
		Number: number,
		Err:    err,
	}
}

// IsTicketNotFound checks if an error indicates a ticket was not found.
func IsTicketNotFound(err error) bool {
	return errors.Is(err, ErrTicketNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsConflict checks if an error indicates a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
