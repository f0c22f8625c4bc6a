package notification

import (
	"log/slog"
	"sync"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
)

// Hub holds the live per-transaction subscriber connections. It is
// constructed once per process and passed by reference to whoever publishes;
// there is no ambient global registry.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan *donation.Donation
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]chan *donation.Donation),
		logger:      logger,
	}
}

// Subscribe registers the single active connection for a txid. A later
// subscribe for the same txid replaces the earlier one (last-writer-wins):
// the replaced channel is closed so its connection tears down.
func (h *Hub) Subscribe(txID string) <-chan *donation.Donation {
	ch := make(chan *donation.Donation, 1)

	h.mu.Lock()
	if old, ok := h.subscribers[txID]; ok {
		close(old)
	}
	h.subscribers[txID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber registered", "tx_id", txID)
	return ch
}

// Unsubscribe removes the registration, but only if the caller's channel is
// still the registered one; a replacement made by a later Subscribe survives.
func (h *Hub) Unsubscribe(txID string, ch <-chan *donation.Donation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.subscribers[txID]
	if !ok || current != ch {
		return
	}
	delete(h.subscribers, txID)
	close(current)
	h.logger.Debug("subscriber removed", "tx_id", txID)
}

// Publish delivers each confirmed donation to the subscriber waiting on its
// txid. Donations without a subscriber are dropped silently (at-most-once,
// best-effort); one missing subscriber never affects delivery to the rest of
// the batch.
//
// The send happens under the read lock: Subscribe and Unsubscribe only close
// a channel under the write lock, so holding the read lock through the send
// keeps it off a closed channel.
func (h *Hub) Publish(donations []*donation.Donation) {
	for _, d := range donations {
		h.mu.RLock()
		ch, ok := h.subscribers[d.TxID]
		if !ok {
			h.mu.RUnlock()
			h.logger.Debug("no subscriber for transaction, dropping event", "tx_id", d.TxID)
			continue
		}

		select {
		case ch <- d:
			h.logger.Info("donation event delivered", "tx_id", d.TxID, "donation_id", d.ID)
		default:
			h.logger.Warn("subscriber buffer full, dropping event", "tx_id", d.TxID)
		}
		h.mu.RUnlock()
	}
}

// SubscriberCount reports how many live connections the hub holds.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
