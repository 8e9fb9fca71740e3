// Package notifier delivers ticket notifications after a state change has
// been persisted. Delivery is fire-and-forget: a failed publish is logged
// and never fails the originating action.
package notifier

import (
	"context"
	"log/slog"

	"github.com/hivedesk/hivedesk/pkg/eventbus"
)

// Notifier accepts events produced by committed ticket actions.
type Notifier interface {
	Notify(ctx context.Context, event eventbus.Event)
}

// EventBusNotifier publishes notification events to the event bus.
type EventBusNotifier struct {
	bus    eventbus.EventPublisher
	logger *slog.Logger
}

func NewEventBusNotifier(bus eventbus.EventPublisher, logger *slog.Logger) *EventBusNotifier {
	return &EventBusNotifier{
		bus:    bus,
		logger: logger.With("module", "notifier"),
	}
}

// Notify publishes the event keyed by its type. Publish errors are logged
// and swallowed so the caller's committed action stands regardless.
func (n *EventBusNotifier) Notify(ctx context.Context, event eventbus.Event) {
	err := n.bus.Publish(ctx, string(event.GetType()), event)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish notification event",
			"event_type", event.GetType(), "error", err)
	}
}

// NoopNotifier discards every event. Used where no bus is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context, _ eventbus.Event) {}
