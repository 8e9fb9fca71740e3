// Package services provides the application services over the workflow engine
// and standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/hivedesk/hivedesk/pkg/actions"
	"github.com/hivedesk/hivedesk/pkg/engine"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/workflow"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidStatus         = errors.New("invalid ticket status")
	ErrWorkflowNil           = errors.New("workflow cannot be nil")
	ErrWorkflowNotExecutable = errors.New("workflow graph is not executable")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyPublished = errors.New("cannot modify published workflow")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNotExecutable) ||
		errors.Is(err, actions.ErrMissingField) ||
		errors.Is(err, actions.ErrUnresolvableIdentity)
}

// IsUnknownAction checks if an error indicates an unrecognized action kind.
func IsUnknownAction(err error) bool {
	return errors.Is(err, actions.ErrUnknownAction)
}

// IsIllegalTransition checks if an error indicates an illegal stage transition.
func IsIllegalTransition(err error) bool {
	return engine.IsIllegalTransition(err) ||
		errors.Is(err, engine.ErrNoUnresolvedBlocker)
}

// IsNotFoundError checks if an error is a referential miss that should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsTicketNotFound(err) ||
		persistence.IsWorkflowNotFound(err) ||
		workflow.IsNodeNotFound(err)
}

// IsConflictError checks if an error is a concurrency or business conflict
// that should return HTTP 409.
func IsConflictError(err error) bool {
	return persistence.IsConflict(err) ||
		errors.Is(err, persistence.ErrTicketAlreadyExists) ||
		errors.Is(err, ErrCannotModifyPublished)
}
