package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/workflow"
)

// Workflow is the application service for workflow graph documents produced
// by the visual editor.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence) *Workflow {
	return &Workflow{persistence: p}
}

// Create stores a new draft workflow. Drafts may be structurally incomplete;
// the graph invariants are enforced at publish time.
func (s *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	if len(wf.Name) < 3 {
		return nil, fmt.Errorf("%w: workflow name must be at least 3 characters", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	wf.ID = uuid.New().String()
	wf.Status = models.WorkflowStatusDraft
	wf.CreatedAt = now
	wf.UpdatedAt = now

	err := s.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Update replaces the nodes and edges of a draft workflow. Published
// workflows are immutable per version; the editor creates a new draft
// instead.
func (s *Workflow) Update(ctx context.Context, id string, nodes []*models.WorkflowNode, edges []*models.Edge) (*models.Workflow, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf.Status == models.WorkflowStatusPublished {
		return nil, ErrCannotModifyPublished
	}

	wf.Nodes = nodes
	wf.Edges = edges

	err = s.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Publish validates the graph invariants and marks the workflow assignable.
func (s *Workflow) Publish(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_, err = workflow.NewGraph(wf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkflowNotExecutable, err)
	}

	wf.Status = models.WorkflowStatusPublished

	err = s.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Get returns a workflow by id.
func (s *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByID(ctx, id)
}

// List returns all stored workflows.
func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().List(ctx)
}

// Delete removes a workflow document.
func (s *Workflow) Delete(ctx context.Context, id string) error {
	return s.persistence.WorkflowRepository().Delete(ctx, id)
}
