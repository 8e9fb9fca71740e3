// Package persistence provides the document store abstraction for tickets and
// workflow graphs.
package persistence

import (
	"context"

	"github.com/hivedesk/hivedesk/pkg/models"
)

// ListTicketsOptions filters ticket listings for dashboard feeds.
type ListTicketsOptions struct {
	AssigneeID string
	Status     *models.TicketStatus
	WorkflowID string
}

// TicketRepository stores one document per ticket.
//
// Save is the engine's single commit point and must be conditional: the write
// only succeeds when the stored document still carries the version the caller
// loaded, and the stored version is incremented on success. A stale writer
// receives ErrConflict and none of its mutations become observable.
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByNumber(ctx context.Context, number string) (*models.Ticket, error)
	Save(ctx context.Context, ticket *models.Ticket) error
	List(ctx context.Context, opts ListTicketsOptions) ([]*models.Ticket, error)
}

// WorkflowRepository stores one document per workflow graph version.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Workflow, error)
}

type Persistence interface {
	TicketRepository() TicketRepository
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
