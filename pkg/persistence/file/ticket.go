package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
)

// TicketRepository handles ticket-related file operations. Writes are
// serialized by a process-wide mutex and versions are compared on save, which
// gives the same conflict semantics as the SQL backend for a single process.
type TicketRepository struct {
	root string
	mu   sync.Mutex
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(root string) *TicketRepository {
	return &TicketRepository{root: root}
}

func (tr *TicketRepository) ticketPath(number string) string {
	return filepath.Join(tr.root, "tickets", number+".json")
}

// Create stores a new ticket document. The ticket number must be unused.
func (tr *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if err := validateDocumentID(ticket.Number); err != nil {
		return persistence.NewTicketError("Create", ticket.Number, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, err := os.Stat(tr.ticketPath(ticket.Number)); err == nil {
		return persistence.NewTicketError("Create", ticket.Number, persistence.ErrTicketAlreadyExists)
	}

	if ticket.Version == 0 {
		ticket.Version = 1
	}

	return tr.write(ticket)
}

// GetByNumber retrieves a ticket document by its number.
func (tr *TicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	if err := validateDocumentID(number); err != nil {
		return nil, persistence.NewTicketError("GetByNumber", number, err)
	}

	data, err := os.ReadFile(tr.ticketPath(number)) // #nosec G304 -- number is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewTicketError("GetByNumber", number, persistence.ErrTicketNotFound)
		}

		return nil, fmt.Errorf("failed to read ticket %s: %w", number, err)
	}

	var ticket models.Ticket

	err = json.Unmarshal(data, &ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket %s: %w", number, err)
	}

	return &ticket, nil
}

// Save conditionally replaces the stored document. The caller's ticket must
// carry the version it loaded; the stored version is bumped on success and
// ErrConflict is returned when a concurrent writer got there first.
func (tr *TicketRepository) Save(ctx context.Context, ticket *models.Ticket) error {
	if err := validateDocumentID(ticket.Number); err != nil {
		return persistence.NewTicketError("Save", ticket.Number, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	stored, err := tr.GetByNumber(ctx, ticket.Number)
	if err != nil {
		return err
	}

	if stored.Version != ticket.Version {
		return persistence.NewTicketError("Save", ticket.Number, persistence.ErrConflict)
	}

	ticket.Version++
	ticket.UpdatedAt = time.Now().UTC()

	return tr.write(ticket)
}

// List returns tickets matching the filter options, for dashboard feeds.
func (tr *TicketRepository) List(ctx context.Context, opts persistence.ListTicketsOptions) ([]*models.Ticket, error) {
	ticketsDir := filepath.Join(tr.root, "tickets")

	if _, err := os.Stat(ticketsDir); os.IsNotExist(err) {
		return []*models.Ticket{}, nil
	}

	entries, err := os.ReadDir(ticketsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tickets directory: %w", err)
	}

	tickets := make([]*models.Ticket, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		ticket, err := tr.GetByNumber(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip invalid files
			continue
		}

		if !matchesTicket(ticket, opts) {
			continue
		}

		tickets = append(tickets, ticket)
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
		found := false

		for _, assignee := range ticket.CurrentAssignees {
			if assignee == opts.AssigneeID {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

func (tr *TicketRepository) write(ticket *models.Ticket) error {
	ticketsDir := filepath.Join(tr.root, "tickets")

	err := os.MkdirAll(ticketsDir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create tickets directory: %w", err)
	}

	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket %s: %w", ticket.Number, err)
	}

	err = os.WriteFile(tr.ticketPath(ticket.Number), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write ticket %s: %w", ticket.Number, err)
	}

	return nil
}
