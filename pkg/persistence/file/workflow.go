package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
)

// WorkflowRepository handles workflow graph document file operations.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) workflowPath(id string) string {
	return filepath.Join(wr.root, "workflows", id+".json")
}

// GetByID retrieves a workflow graph document by its id.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	if err := validateDocumentID(id); err != nil {
		return nil, fmt.Errorf("invalid workflow id: %w", err)
	}

	data, err := os.ReadFile(wr.workflowPath(id)) // #nosec G304 -- id is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// Save stores a workflow graph document, overwriting any previous version.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if err := validateDocumentID(workflow.ID); err != nil {
		return fmt.Errorf("invalid workflow id: %w", err)
	}

	workflowsDir := filepath.Join(wr.root, "workflows")

	err := os.MkdirAll(workflowsDir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	workflow.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	err = os.WriteFile(wr.workflowPath(workflow.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// Delete removes a workflow graph document.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if err := validateDocumentID(id); err != nil {
		return fmt.Errorf("invalid workflow id: %w", err)
	}

	err := os.Remove(wr.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

// List returns all stored workflow graph documents.
func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	workflowsDir := filepath.Join(wr.root, "workflows")

	if _, err := os.Stat(workflowsDir); os.IsNotExist(err) {
		return []*models.Workflow{}, nil
	}

	entries, err := os.ReadDir(workflowsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		workflow, err := wr.GetByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip invalid files
			continue
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}
