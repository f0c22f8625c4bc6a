package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/core/events"
)

// EventHandler bridges the event bus to the hub: every donation.paid event
// becomes a push to the subscriber waiting on that transaction.
type EventHandler struct {
	hub    *Hub
	logger *slog.Logger
}

func NewEventHandler(hub *Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		hub:    hub,
		logger: logger,
	}
}

func (h *EventHandler) HandleDonationPaid(ctx context.Context, event events.Event) error {
	paidEvent, ok := event.(*events.DonationPaidEvent)
	if !ok {
		h.logger.Error("invalid event type for donation paid handler", "event_type", event.EventType())
		return fmt.Errorf("expected DonationPaidEvent, got %T", event)
	}

	h.hub.Publish([]*donation.Donation{paidEvent.Donation})
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeDonationPaid, h.HandleDonationPaid)

	h.logger.Info("notification event handlers registered",
		"handlers", []string{events.EventTypeDonationPaid})
}
