// Package file provides file-based persistence for tickets and workflow graphs.
package file

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/hivedesk/hivedesk/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	ticketRepo   *TicketRepository
	workflowRepo *WorkflowRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		ticketRepo:   NewTicketRepository(cleanRoot),
		workflowRepo: NewWorkflowRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) TicketRepository() persistence.TicketRepository {
	return fp.ticketRepo
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// validateDocumentID rejects ids that could escape the storage directory.
func validateDocumentID(id string) error {
	if id == "" {
		return errors.New("document id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return errors.New("document id contains invalid characters")
	}

	return nil
}
