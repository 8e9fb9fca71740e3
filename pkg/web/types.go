package web

import (
	"encoding/json"

	"github.com/hivedesk/hivedesk/pkg/models"
)

// IdentityPayload is the wire form of an acting user.
type IdentityPayload struct {
	UserID string `json:"user_id" validate:"required"`
	Name   string `json:"name"    validate:"required"`
}

func (p IdentityPayload) toModel() models.Identity {
	return models.Identity{UserID: p.UserID, Name: p.Name}
}

// CreateTicketRequest opens a new ticket against a published workflow.
type CreateTicketRequest struct {
	Title       string          `json:"title"       validate:"required,min=3"`
	Description string          `json:"description"`
	WorkflowID  string          `json:"workflow_id" validate:"required"`
	CreatedBy   IdentityPayload `json:"created_by"  validate:"required"`
}

// ExecuteActionRequest is the envelope of an action submission. The
// action-specific fields ride alongside these two in the same JSON object and
// are decoded by the action parser.
type ExecuteActionRequest struct {
	Action      string          `json:"action"       validate:"required"`
	PerformedBy IdentityPayload `json:"performed_by" validate:"required"`
}

// CreateWorkflowRequest stores a new draft workflow. Document, when present,
// is the raw graph document exported by the visual editor.
type CreateWorkflowRequest struct {
	Name        string          `json:"name" validate:"required,min=3"`
	Description string          `json:"description"`
	Owner       string          `json:"owner"`
	Document    json.RawMessage `json:"document,omitempty"`
}

// UpdateWorkflowRequest replaces a draft's graph document.
type UpdateWorkflowRequest struct {
	Document json.RawMessage `json:"document" validate:"required"`
}

// graphDocument is the decoded form of an editor export.
type graphDocument struct {
	Nodes []*models.WorkflowNode `json:"nodes"`
	Edges []*models.Edge         `json:"edges"`
}
