// Package events defines event types and structures for ticket lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/hivedesk/hivedesk/pkg/models"
)

type EventType string

// Topic carries every ticket notification event.
const Topic = "hivedesk.tickets.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TicketForwardedEvent   EventType = "ticket.forwarded"
	TicketReassignedEvent  EventType = "ticket.reassigned"
	TicketGroupFormedEvent EventType = "ticket.group_formed"
	TicketRevertedEvent    EventType = "ticket.reverted"
	TicketResolvedEvent    EventType = "ticket.resolved"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	TicketNumber string    `json:"ticket_number"`
	WorkflowID   string    `json:"workflow_id"`
}

// TicketForwarded is emitted when a ticket moves to the next workflow node.
type TicketForwarded struct {
	BaseEvent

	FromNode    string          `json:"from_node"`
	ToNode      string          `json:"to_node"`
	ForwardedBy models.Identity `json:"forwarded_by"`
	Assignees   []string        `json:"assignees"`
	Explanation string          `json:"explanation,omitempty"`
}

func (e TicketForwarded) GetType() EventType {
	return TicketForwardedEvent
}

// TicketReassigned is emitted when the current stage changes hands without
// the ticket moving.
type TicketReassigned struct {
	BaseEvent

	Node         string            `json:"node"`
	ReassignedBy models.Identity   `json:"reassigned_by"`
	ReassignedTo []models.Identity `json:"reassigned_to"`
	Explanation  string            `json:"explanation,omitempty"`
}

func (e TicketReassigned) GetType() EventType {
	return TicketReassignedEvent
}

// TicketGroupFormed is emitted when a parallel stage gets its working group.
type TicketGroupFormed struct {
	BaseEvent

	Node         string            `json:"node"`
	FormedBy     models.Identity   `json:"formed_by"`
	GroupLead    models.Identity   `json:"group_lead"`
	GroupMembers []models.Identity `json:"group_members"`
}

func (e TicketGroupFormed) GetType() EventType {
	return TicketGroupFormedEvent
}

// TicketReverted is emitted when a ticket is sent back to the previous node.
type TicketReverted struct {
	BaseEvent

	FromNode      string          `json:"from_node"`
	ToNode        string          `json:"to_node"`
	RevertedBy    models.Identity `json:"reverted_by"`
	Assignees     []string        `json:"assignees"`
	RevertMessage string          `json:"revert_message"`
}

func (e TicketReverted) GetType() EventType {
	return TicketRevertedEvent
}

// TicketResolved is emitted when a ticket reaches the resolved status.
type TicketResolved struct {
	BaseEvent

	ResolvedBy models.Identity `json:"resolved_by"`
	CreatedBy  models.Identity `json:"created_by"`
}

func (e TicketResolved) GetType() EventType {
	return TicketResolvedEvent
}

func NewBaseEvent(eventType EventType, ticketNumber, workflowID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		TicketNumber: ticketNumber,
		WorkflowID:   workflowID,
	}
}
