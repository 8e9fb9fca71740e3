package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
)

// TicketRepository handles ticket-related database operations. Each ticket is
// one JSONB document; the version column backs the conditional save.
type TicketRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sql.DB, logger *slog.Logger) *TicketRepository {
	return &TicketRepository{db: db, logger: logger}
}

// Create inserts a new ticket document.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.Version == 0 {
		ticket.Version = 1
	}

	document, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket %s: %w", ticket.Number, err)
	}

	query := `
		INSERT INTO tickets (number, workflow_id, status, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (number) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		ticket.Number, ticket.WorkflowID, ticket.Status, ticket.Version,
		document, ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ticket %s: %w", ticket.Number, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert result for ticket %s: %w", ticket.Number, err)
	}

	if affected == 0 {
		return persistence.NewTicketError("Create", ticket.Number, persistence.ErrTicketAlreadyExists)
	}

	return nil
}

// GetByNumber retrieves a ticket document by its number.
func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM tickets WHERE number = $1", number).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTicketError("GetByNumber", number, persistence.ErrTicketNotFound)
		}

		return nil, fmt.Errorf("failed to query ticket %s: %w", number, err)
	}

	var ticket models.Ticket

	err = json.Unmarshal(document, &ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket %s: %w", number, err)
	}

	return &ticket, nil
}

// Save conditionally replaces the stored document: the UPDATE is keyed on the
// version the caller loaded, so a stale writer matches zero rows and gets
// ErrConflict instead of silently clobbering the concurrent write.
func (r *TicketRepository) Save(ctx context.Context, ticket *models.Ticket) error {
	loadedVersion := ticket.Version
	ticket.Version = loadedVersion + 1
	ticket.UpdatedAt = time.Now().UTC()

	document, err := json.Marshal(ticket)
	if err != nil {
		ticket.Version = loadedVersion

		return fmt.Errorf("failed to marshal ticket %s: %w", ticket.Number, err)
	}

	query := `
		UPDATE tickets
		SET workflow_id = $1, status = $2, version = $3, document = $4, updated_at = $5
		WHERE number = $6 AND version = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		ticket.WorkflowID, ticket.Status, ticket.Version, document,
		ticket.UpdatedAt, ticket.Number, loadedVersion)
	if err != nil {
		ticket.Version = loadedVersion

		return fmt.Errorf("failed to update ticket %s: %w", ticket.Number, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		ticket.Version = loadedVersion

		return fmt.Errorf("failed to check update result for ticket %s: %w", ticket.Number, err)
	}

	if affected == 0 {
		ticket.Version = loadedVersion

		exists, existsErr := r.exists(ctx, ticket.Number)
		if existsErr != nil {
			return existsErr
		}

		if !exists {
			return persistence.NewTicketError("Save", ticket.Number, persistence.ErrTicketNotFound)
		}

		return persistence.NewTicketError("Save", ticket.Number, persistence.ErrConflict)
	}

	return nil
}

func (r *TicketRepository) exists(ctx context.Context, number string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM tickets WHERE number = $1)", number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket %s: %w", number, err)
	}

	return exists, nil
}

// List returns tickets matching the filter options.
func (r *TicketRepository) List(ctx context.Context, opts persistence.ListTicketsOptions) ([]*models.Ticket, error) {
	query := "SELECT document FROM tickets WHERE 1=1"
	args := make([]any, 0, 3)

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.AssigneeID != "" {
		args = append(args, fmt.Sprintf("%q", opts.AssigneeID))
		query += fmt.Sprintf(" AND document->'current_assignees' @> $%d::jsonb", len(args))
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tickets := make([]*models.Ticket, 0)

	for rows.Next() {
		var document []byte

		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}

		var ticket models.Ticket

		if err := json.Unmarshal(document, &ticket); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ticket: %w", err)
		}

		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}
