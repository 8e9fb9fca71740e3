// Package models defines the core domain models for ticket workflow execution.
package models

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusBlocked    TicketStatus = "blocked"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// IsTerminal reports whether the status ends normal progression.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Identity is the minimal representation of a portal user.
type Identity struct {
	UserID string `json:"user_id" validate:"required"`
	Name   string `json:"name"    validate:"required"`
}

// Credit attributes a contribution on a ticket to a user.
type Credit struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Blocker is a reported impediment that suspends normal progression.
type Blocker struct {
	Description string     `json:"description"`
	ReportedBy  Identity   `json:"reported_by"`
	ReportedAt  time.Time  `json:"reported_at"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedBy  *Identity  `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// HistoryEntry is one immutable audit record of an action taken on a ticket.
type HistoryEntry struct {
	ActionType         string    `json:"action_type"`
	PerformedBy        Identity  `json:"performed_by"`
	PerformedAt        time.Time `json:"performed_at"`
	FromNode           string    `json:"from_node,omitempty"`
	ToNode             string    `json:"to_node,omitempty"`
	Explanation        string    `json:"explanation,omitempty"`
	Attachments        []string  `json:"attachments,omitempty"`
	GroupMembers       []string  `json:"group_members,omitempty"`
	BlockerDescription string    `json:"blocker_description,omitempty"`
	ReassignedTo       []string  `json:"reassigned_to,omitempty"`
}

// Ticket is the mutable entity advanced through a workflow graph by the engine.
// Version supports optimistic concurrency: Save implementations compare it against
// the stored document and reject stale writers.
type Ticket struct {
	ID               string         `json:"id"`
	Number           string         `json:"number"      validate:"required"`
	Title            string         `json:"title"       validate:"required,min=3"`
	Description      string         `json:"description"`
	WorkflowID       string         `json:"workflow_id" validate:"required"`
	WorkflowStage    string         `json:"workflow_stage"`
	Status           TicketStatus   `json:"status"`
	CreatedBy        Identity       `json:"created_by"`
	CurrentAssignee  string         `json:"current_assignee"`
	CurrentAssignees []string       `json:"current_assignees"`
	GroupLead        string         `json:"group_lead,omitempty"`
	PrimaryCredit    *Credit        `json:"primary_credit,omitempty"`
	SecondaryCredits []Credit       `json:"secondary_credits"`
	Blockers         []Blocker      `json:"blockers"`
	WorkflowHistory  []HistoryEntry `json:"workflow_history"`
	Version          int64          `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasSecondaryCredit reports whether the user already holds a secondary credit entry.
func (t *Ticket) HasSecondaryCredit(userID string) bool {
	for _, c := range t.SecondaryCredits {
		if c.UserID == userID {
			return true
		}
	}

	return false
}

// IsPrimaryHolder reports whether the user holds the ticket's primary credit.
func (t *Ticket) IsPrimaryHolder(userID string) bool {
	return t.PrimaryCredit != nil && t.PrimaryCredit.UserID == userID
}

// LastUnresolvedBlocker returns the index of the most recently reported
// unresolved blocker, or -1 when every blocker is resolved.
func (t *Ticket) LastUnresolvedBlocker() int {
	for i := len(t.Blockers) - 1; i >= 0; i-- {
		if !t.Blockers[i].IsResolved {
			return i
		}
	}

	return -1
}

// AppendHistory records an audit entry. History is append-only; nothing in the
// engine ever rewrites or removes existing entries.
func (t *Ticket) AppendHistory(entry HistoryEntry) {
	t.WorkflowHistory = append(t.WorkflowHistory, entry)
}
