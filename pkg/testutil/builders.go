// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/hivedesk/hivedesk/pkg/models"
)

// LinearWorkflow builds a start -> employee... -> end workflow where every
// employee node is sequential. employeeIDs become both node ids ("node-<id>")
// and assignees.
func LinearWorkflow(employeeIDs ...string) *models.Workflow {
	wf := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Test Workflow",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeStart, Data: models.NodeData{Label: "Start"}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	prev := "start"

	for _, employeeID := range employeeIDs {
		nodeID := "node-" + employeeID
		wf.Nodes = append(wf.Nodes, &models.WorkflowNode{
			ID:   nodeID,
			Type: models.NodeTypeEmployee,
			Data: models.NodeData{
				Label:      employeeID,
				NodeType:   models.EmployeeNodeSequential,
				EmployeeID: employeeID,
			},
		})
		wf.Edges = append(wf.Edges, &models.Edge{
			ID:     "edge-" + prev + "-" + nodeID,
			Source: prev,
			Target: nodeID,
		})
		prev = nodeID
	}

	wf.Nodes = append(wf.Nodes, &models.WorkflowNode{
		ID: "end", Type: models.NodeTypeEnd, Data: models.NodeData{Label: "End"},
	})
	wf.Edges = append(wf.Edges, &models.Edge{
		ID: "edge-" + prev + "-end", Source: prev, Target: "end",
	})

	return wf
}

// WithParallelNode rewrites the named node into a parallel lead+members group.
func WithParallelNode(wf *models.Workflow, nodeID, lead string, members ...string) *models.Workflow {
	for _, node := range wf.Nodes {
		if node.ID == nodeID {
			node.Data.NodeType = models.EmployeeNodeParallel
			node.Data.GroupLead = lead
			node.Data.GroupMembers = members
		}
	}

	return wf
}

// CreateTestTicket creates a ticket parked at the workflow's start node with
// default values that can be overridden.
func CreateTestTicket(wf *models.Workflow, overrides ...func(*models.Ticket)) *models.Ticket {
	ticket := &models.Ticket{
		ID:               uuid.New().String(),
		Number:           "TCK-" + uuid.NewString()[:8],
		Title:            "Test Ticket",
		Description:      "Created by tests",
		WorkflowID:       wf.ID,
		WorkflowStage:    "start",
		Status:           models.TicketStatusPending,
		CreatedBy:        models.Identity{UserID: "requester", Name: "Requester"},
		CurrentAssignees: []string{},
		SecondaryCredits: []models.Credit{},
		Blockers:         []models.Blocker{},
		WorkflowHistory:  []models.HistoryEntry{},
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	for _, override := range overrides {
		override(ticket)
	}

	return ticket
}

// AtStage parks the ticket at a stage with a single assignee.
func AtStage(nodeID, assignee string) func(*models.Ticket) {
	return func(t *models.Ticket) {
		t.WorkflowStage = nodeID
		t.CurrentAssignee = assignee
		t.CurrentAssignees = []string{assignee}
	}
}
