// Package redis provides Redis persistence for tickets and workflow graphs.
//
// Documents are stored as JSON strings. The conditional ticket save runs under
// WATCH/MULTI so a concurrent writer aborts the transaction instead of being
// silently overwritten.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
)

const (
	ticketKeyPrefix   = "hivedesk:tickets:"
	workflowKeyPrefix = "hivedesk:workflows:"
)

// Persistence implements the persistence layer on a Redis instance.
type Persistence struct {
	client       *goredis.Client
	ticketRepo   *TicketRepository
	workflowRepo *WorkflowRepository
}

// NewPersistence creates a Redis persistence layer from a redis:// URL.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{
		client:       client,
		ticketRepo:   &TicketRepository{client: client},
		workflowRepo: &WorkflowRepository{client: client},
	}, nil
}

// NewPersistenceWithClient wraps an existing client, used by tests.
func NewPersistenceWithClient(client *goredis.Client) *Persistence {
	return &Persistence{
		client:       client,
		ticketRepo:   &TicketRepository{client: client},
		workflowRepo: &WorkflowRepository{client: client},
	}
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) TicketRepository() persistence.TicketRepository {
	return p.ticketRepo
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// TicketRepository stores ticket documents under hivedesk:tickets:<number>.
type TicketRepository struct {
	client *goredis.Client
}

func ticketKey(number string) string {
	return ticketKeyPrefix + number
}

// Create stores a new ticket document. The ticket number must be unused.
func (tr *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.Version == 0 {
		ticket.Version = 1
	}

	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket %s: %w", ticket.Number, err)
	}

	created, err := tr.client.SetNX(ctx, ticketKey(ticket.Number), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create ticket %s: %w", ticket.Number, err)
	}

	if !created {
		return persistence.NewTicketError("Create", ticket.Number, persistence.ErrTicketAlreadyExists)
	}

	return nil
}

// GetByNumber retrieves a ticket document by its number.
func (tr *TicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	data, err := tr.client.Get(ctx, ticketKey(number)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewTicketError("GetByNumber", number, persistence.ErrTicketNotFound)
		}

		return nil, fmt.Errorf("failed to get ticket %s: %w", number, err)
	}

	var ticket models.Ticket

	err = json.Unmarshal(data, &ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket %s: %w", number, err)
	}

	return &ticket, nil
}

// Save conditionally replaces the stored document under WATCH. The stored
// version must still match the version the caller loaded; otherwise the
// transaction aborts with ErrConflict.
func (tr *TicketRepository) Save(ctx context.Context, ticket *models.Ticket) error {
	key := ticketKey(ticket.Number)
	loadedVersion := ticket.Version

	err := tr.client.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return persistence.NewTicketError("Save", ticket.Number, persistence.ErrTicketNotFound)
			}

			return fmt.Errorf("failed to get ticket %s: %w", ticket.Number, err)
		}

		var stored models.Ticket
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal ticket %s: %w", ticket.Number, err)
		}

		if stored.Version != loadedVersion {
			return persistence.NewTicketError("Save", ticket.Number, persistence.ErrConflict)
		}

		ticket.Version = loadedVersion + 1
		ticket.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(ticket)
		if err != nil {
			ticket.Version = loadedVersion

			return fmt.Errorf("failed to marshal ticket %s: %w", ticket.Number, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)

			return nil
		})
		if err != nil {
			ticket.Version = loadedVersion
		}

		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		ticket.Version = loadedVersion

		return persistence.NewTicketError("Save", ticket.Number, persistence.ErrConflict)
	}

	return err
}

// List returns tickets matching the filter options by scanning the keyspace.
// Portal scale keeps ticket counts small enough for SCAN to be fine here.
func (tr *TicketRepository) List(ctx context.Context, opts persistence.ListTicketsOptions) ([]*models.Ticket, error) {
	tickets := make([]*models.Ticket, 0)

	iter := tr.client.Scan(ctx, 0, ticketKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := tr.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}

			return nil, fmt.Errorf("failed to get ticket %s: %w", iter.Val(), err)
		}

		var ticket models.Ticket

		if err := json.Unmarshal(data, &ticket); err != nil {
			continue
		}

		if !matchesTicket(&ticket, opts) {
			continue
		}

		tickets = append(tickets, &ticket)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tickets: %w", err)
	}

	return tickets, nil
}

func matchesTicket(ticket *models.Ticket, opts persistence.ListTicketsOptions) bool {
	if opts.WorkflowID != "" && ticket.WorkflowID != opts.WorkflowID {
		return false
	}

	if opts.Status != nil && ticket.Status != *opts.Status {
		return false
	}

	if opts.AssigneeID != "" {
		for _, assignee := range ticket.CurrentAssignees {
			if assignee == opts.AssigneeID {
				return true
			}
		}

		return false
	}

	return true
}

// WorkflowRepository stores workflow documents under hivedesk:workflows:<id>.
type WorkflowRepository struct {
	client *goredis.Client
}

func workflowKey(id string) string {
	return workflowKeyPrefix + id
}

// GetByID retrieves a workflow graph document by its id.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := wr.client.Get(ctx, workflowKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// Save stores a workflow graph document.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	err = wr.client.Set(ctx, workflowKey(workflow.ID), data, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// Delete removes a workflow graph document.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	deleted, err := wr.client.Del(ctx, workflowKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if deleted == 0 {
		return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// List returns all stored workflow graph documents.
func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	iter := wr.client.Scan(ctx, 0, workflowKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := wr.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}

			return nil, fmt.Errorf("failed to get workflow %s: %w", iter.Val(), err)
		}

		var workflow models.Workflow

		if err := json.Unmarshal(data, &workflow); err != nil {
			continue
		}

		workflows = append(workflows, &workflow)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan workflows: %w", err)
	}

	return workflows, nil
}
