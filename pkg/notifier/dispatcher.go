package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hivedesk/hivedesk/pkg/eventbus"
	"github.com/hivedesk/hivedesk/pkg/events"
)

// Mailer sends one rendered notification to a recipient.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogMailer writes notifications to the log instead of sending mail.
// It stands in wherever no SMTP relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, recipient, subject, body string) error {
	m.logger.InfoContext(ctx, "Notification", "recipient", recipient, "subject", subject, "body", body)

	return nil
}

// Dispatcher subscribes to the ticket event topic and turns each event into
// per-recipient notifications.
type Dispatcher struct {
	bus    eventbus.EventBus
	mailer Mailer
	logger *slog.Logger
}

func NewDispatcher(bus eventbus.EventBus, mailer Mailer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		bus:    bus,
		mailer: mailer,
		logger: logger.With("module", "dispatcher"),
	}
}

// Start registers handlers for every ticket event type and begins consuming.
func (d *Dispatcher) Start(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.TicketForwardedEvent:   d.handleForwarded,
		events.TicketReassignedEvent:  d.handleReassigned,
		events.TicketGroupFormedEvent: d.handleGroupFormed,
		events.TicketRevertedEvent:    d.handleReverted,
		events.TicketResolvedEvent:    d.handleResolved,
	}

	for eventType, handler := range handlers {
		err := d.bus.Handle(eventType, handler)
		if err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return d.bus.Subscribe(ctx)
}

func (d *Dispatcher) handleForwarded(ctx context.Context, raw any) error {
	event, ok := raw.(*events.TicketForwarded)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	subject := fmt.Sprintf("Ticket %s is now with you", event.TicketNumber)
	body := fmt.Sprintf("%s forwarded ticket %s to stage %s.",
		event.ForwardedBy.Name, event.TicketNumber, event.ToNode)

	for _, assignee := range event.Assignees {
		d.deliver(ctx, assignee, subject, body)
	}

	return nil
}

func (d *Dispatcher) handleReassigned(ctx context.Context, raw any) error {
	event, ok := raw.(*events.TicketReassigned)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	subject := fmt.Sprintf("Ticket %s was reassigned to you", event.TicketNumber)
	body := fmt.Sprintf("%s reassigned ticket %s at stage %s.",
		event.ReassignedBy.Name, event.TicketNumber, event.Node)

	for _, identity := range event.ReassignedTo {
		d.deliver(ctx, identity.UserID, subject, body)
	}

	return nil
}

func (d *Dispatcher) handleGroupFormed(ctx context.Context, raw any) error {
	event, ok := raw.(*events.TicketGroupFormed)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	subject := fmt.Sprintf("You joined the working group for ticket %s", event.TicketNumber)
	body := fmt.Sprintf("%s formed a group led by %s on ticket %s at stage %s.",
		event.FormedBy.Name, event.GroupLead.Name, event.TicketNumber, event.Node)

	d.deliver(ctx, event.GroupLead.UserID, subject, body)

	for _, member := range event.GroupMembers {
		d.deliver(ctx, member.UserID, subject, body)
	}

	return nil
}

func (d *Dispatcher) handleReverted(ctx context.Context, raw any) error {
	event, ok := raw.(*events.TicketReverted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	subject := fmt.Sprintf("Ticket %s came back to your stage", event.TicketNumber)
	body := fmt.Sprintf("%s sent ticket %s back to stage %s: %s",
		event.RevertedBy.Name, event.TicketNumber, event.ToNode, event.RevertMessage)

	for _, assignee := range event.Assignees {
		d.deliver(ctx, assignee, subject, body)
	}

	return nil
}

func (d *Dispatcher) handleResolved(ctx context.Context, raw any) error {
	event, ok := raw.(*events.TicketResolved)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	subject := fmt.Sprintf("Ticket %s was resolved", event.TicketNumber)
	body := fmt.Sprintf("%s resolved ticket %s.", event.ResolvedBy.Name, event.TicketNumber)

	d.deliver(ctx, event.CreatedBy.UserID, subject, body)

	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, recipient, subject, body string) {
	if recipient == "" {
		return
	}

	err := d.mailer.Send(ctx, recipient, subject, body)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to deliver notification",
			"recipient", recipient, "subject", subject, "error", err)
	}
}
