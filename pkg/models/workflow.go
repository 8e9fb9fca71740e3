// Package models defines the workflow graph document produced by the visual editor.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow graph.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not assignable to tickets
	WorkflowStatusPublished WorkflowStatus = "published" // Current active, assignable
	WorkflowStatusArchived  WorkflowStatus = "archived"  // Historical, not assignable
)

// NodeType discriminates the three node kinds of a workflow graph.
type NodeType string

const (
	NodeTypeStart    NodeType = "start"
	NodeTypeEnd      NodeType = "end"
	NodeTypeEmployee NodeType = "employee"
)

// EmployeeNodeType discriminates single-person nodes from lead+members groups.
type EmployeeNodeType string

const (
	EmployeeNodeSequential EmployeeNodeType = "sequential"
	EmployeeNodeParallel   EmployeeNodeType = "parallel"
)

// NodeData carries the editor-supplied payload of a node. Employee fields are
// empty on start and end markers.
type NodeData struct {
	Label        string           `json:"label"`
	NodeType     EmployeeNodeType `json:"nodeType,omitempty"`
	EmployeeID   string           `json:"employeeId,omitempty"`
	GroupLead    string           `json:"groupLead,omitempty"`
	GroupMembers []string         `json:"groupMembers,omitempty"`
}

// WorkflowNode is one node of a workflow graph document.
type WorkflowNode struct {
	ID   string   `json:"id"   validate:"required"`
	Type NodeType `json:"type" validate:"required,oneof=start end employee"`
	Data NodeData `json:"data"`
}

func (n *WorkflowNode) IsStart() bool    { return n.Type == NodeTypeStart }
func (n *WorkflowNode) IsEnd() bool      { return n.Type == NodeTypeEnd }
func (n *WorkflowNode) IsEmployee() bool { return n.Type == NodeTypeEmployee }

// IsParallel reports whether the node holds a lead+members group.
func (n *WorkflowNode) IsParallel() bool {
	return n.Type == NodeTypeEmployee && n.Data.NodeType == EmployeeNodeParallel
}

// Edge is one directed edge of a workflow graph document.
type Edge struct {
	ID     string `json:"id"     validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Workflow is a workflow graph document as stored and as consumed by the engine.
// A published workflow is immutable per version; the editor produces a new draft
// instead of mutating it in place.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*Edge         `json:"edges"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil when absent.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
