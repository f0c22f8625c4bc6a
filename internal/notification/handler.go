package notification

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/transport"
)

// DonationPaidEvent is the SSE payload pushed to the waiting client.
type DonationPaidEvent struct {
	TxID    string    `json:"txid"`
	Valor   float64   `json:"valor"`
	Pagador string    `json:"pagador"`
	Horario time.Time `json:"horario"`
	Status  string    `json:"status"`
}

type Handler struct {
	*transport.BaseHandler
	hub       *Hub
	keepAlive time.Duration
	logger    *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, hub *Hub, keepAlive time.Duration, logger *slog.Logger) *Handler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &Handler{
		BaseHandler: baseHandler,
		hub:         hub,
		keepAlive:   keepAlive,
		logger:      logger,
	}
}

// StreamDonationEvents holds an SSE connection open for one txid. The client
// gets one donationPaid event per confirmed payment plus keep-alive comments
// on a fixed interval so intermediaries don't time the connection out. The
// keep-alive and the subscription are torn down together on disconnect.
func (h *Handler) StreamDonationEvents(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txid")
	if txID == "" {
		h.WriteError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := h.hub.Subscribe(txID)
	defer h.hub.Unsubscribe(txID, events)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	h.logger.Info("notification stream opened", "tx_id", txID)

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("notification stream closed by client", "tx_id", txID)
			return

		case d, open := <-events:
			if !open {
				// replaced by a later subscriber for the same txid
				h.logger.Info("notification stream superseded", "tx_id", txID)
				return
			}
			if err := h.writeEvent(w, d); err != nil {
				h.logger.Error("failed to write donation event", "tx_id", txID, "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, d *donation.Donation) error {
	payload, err := json.Marshal(DonationPaidEvent{
		TxID:    d.TxID,
		Valor:   d.Amount(),
		Pagador: d.DonorName,
		Horario: d.UpdatedAt,
		Status:  d.Status,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: donationPaid\ndata: %s\n\n", payload)
	return err
}
