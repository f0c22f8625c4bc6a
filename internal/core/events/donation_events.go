package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
)

const EventTypeDonationPaid = "donation.paid"

// DonationPaidEvent is published once per effective confirmation: on lazy
// materialization or on the AWAITING_PAYMENT -> PAID transition, never on an
// idempotent replay.
type DonationPaidEvent struct {
	BaseEvent
	Donation *donation.Donation `json:"donation"`
}

func NewDonationPaidEvent(d *donation.Donation) *DonationPaidEvent {
	return &DonationPaidEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDonationPaid,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"donation_id": d.ID,
				"tx_id":       d.TxID,
				"amount":      d.Amount(),
				"status":      d.Status,
			},
		},
		Donation: d,
	}
}
