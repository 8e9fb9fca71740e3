package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hivedesk/hivedesk/pkg/actions"
	"github.com/hivedesk/hivedesk/pkg/engine"
	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/workflow"
)

// Ticket is the application service for ticket operations. Reads go straight
// to the repository; every mutation goes through the engine.
type Ticket struct {
	persistence persistence.Persistence
	engine      *engine.Engine
}

// NewTicket creates a new ticket service.
func NewTicket(p persistence.Persistence, eng *engine.Engine) *Ticket {
	return &Ticket{
		persistence: p,
		engine:      eng,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Ticket) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateTicketRequest contains the inputs for opening a new ticket.
type CreateTicketRequest struct {
	Title       string          `json:"title"       validate:"required,min=3"`
	Description string          `json:"description"`
	WorkflowID  string          `json:"workflow_id" validate:"required"`
	CreatedBy   models.Identity `json:"created_by"  validate:"required"`
}

// Create opens a ticket against a workflow and parks it at the graph's first
// employee node, assigned per that node's shape.
func (s *Ticket) Create(ctx context.Context, req CreateTicketRequest) (*models.Ticket, error) {
	if req.Title == "" || req.WorkflowID == "" {
		return nil, fmt.Errorf("%w: title and workflow_id are required", ErrInvalidRequest)
	}

	if req.CreatedBy.UserID == "" || req.CreatedBy.Name == "" {
		return nil, fmt.Errorf("%w: created_by", actions.ErrUnresolvableIdentity)
	}

	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	graph, err := workflow.NewGraph(wf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkflowNotExecutable, err)
	}

	first, err := graph.FirstEmployeeNode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkflowNotExecutable, err)
	}

	now := time.Now().UTC()
	ticket := &models.Ticket{
		ID:               uuid.New().String(),
		Number:           newTicketNumber(),
		Title:            req.Title,
		Description:      req.Description,
		WorkflowID:       wf.ID,
		Status:           models.TicketStatusPending,
		CreatedBy:        req.CreatedBy,
		SecondaryCredits: []models.Credit{},
		Blockers:         []models.Blocker{},
		WorkflowHistory:  []models.HistoryEntry{},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	engine.PlaceAt(ticket, first)

	err = s.persistence.TicketRepository().Create(ctx, ticket)
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

// ExecuteAction parses the wire form of an action and runs it through the
// engine. Parse failures surface before any state is touched.
func (s *Ticket) ExecuteAction(
	ctx context.Context,
	ticketNumber string,
	actor models.Identity,
	kind actions.Kind,
	payload []byte,
) (*engine.Result, error) {
	action, err := actions.Parse(kind, payload)
	if err != nil {
		return nil, err
	}

	return s.engine.Execute(ctx, ticketNumber, actor, action)
}

// FetchByNumber returns the full ticket record.
func (s *Ticket) FetchByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	if number == "" {
		return nil, fmt.Errorf("%w: ticket number is required", ErrInvalidRequest)
	}

	return s.persistence.TicketRepository().GetByNumber(ctx, number)
}

// ListTicketsRequest contains filter options for listing tickets.
type ListTicketsRequest struct {
	AssigneeID string
	Status     string
	WorkflowID string
}

// List returns tickets matching the filters. An unknown status string is a
// validation error rather than an empty result.
func (s *Ticket) List(ctx context.Context, req ListTicketsRequest) ([]*models.Ticket, error) {
	opts := persistence.ListTicketsOptions{
		AssigneeID: req.AssigneeID,
		WorkflowID: req.WorkflowID,
	}

	if req.Status != "" {
		status := models.TicketStatus(strings.ToLower(req.Status))

		switch status {
		case models.TicketStatusPending, models.TicketStatusInProgress,
			models.TicketStatusBlocked, models.TicketStatusResolved, models.TicketStatusClosed:
			opts.Status = &status
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
		}
	}

	return s.persistence.TicketRepository().List(ctx, opts)
}

func newTicketNumber() string {
	return "TCK-" + strings.ToUpper(uuid.NewString()[:8])
}
