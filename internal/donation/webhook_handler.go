package donation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/transport"
)

type ServiceAPI interface {
	Reconcile(ctx context.Context, txID string) (*donation.Donation, error)
	GetByTxID(ctx context.Context, txID string) (*donation.Donation, error)
	List(ctx context.Context, offset, limit int) ([]*donation.Donation, error)
}

type WebhookHandler struct {
	*transport.BaseHandler
	service ServiceAPI
	logger  *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// HandlePixWebhook processes each notification in the batch independently and
// always answers 200 with a per-item summary. A non-200 would make the
// gateway redeliver the same payload forever, which is worse than reporting
// the failure in the body; only a top-level panic surfaces as 500 via the
// recovery middleware.
func (h *WebhookHandler) HandlePixWebhook(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Error("undecodable webhook payload", "error", err)
		h.WriteJSON(w, http.StatusOK, WebhookSummary{
			Failed:  1,
			Message: "webhook payload could not be decoded",
			Errors:  []string{fmt.Sprintf("invalid body: %v", err)},
		})
		return
	}

	h.logger.Info("received pix webhook", "notifications", len(payload.Pix))

	summary := WebhookSummary{}
	for i, notification := range payload.Pix {
		if notification.TxID == "" {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("item %d: missing txid, skipped", i))
			h.logger.Warn("webhook notification missing txid", "index", i)
			continue
		}

		if _, err := h.service.Reconcile(r.Context(), notification.TxID); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("item %d (txid %s): %v", i, notification.TxID, err))
			h.logger.Error("failed to reconcile webhook notification",
				"error", err,
				"tx_id", notification.TxID,
				"reported_status", notification.Status)
			continue
		}

		summary.Processed++
	}

	summary.Message = fmt.Sprintf("processed %d notification(s), %d failure(s)", summary.Processed, summary.Failed)
	h.WriteJSON(w, http.StatusOK, summary)
}

// ListDonations is the read-only paginated scan for reporting consumers.
func (h *WebhookHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)

	items, err := h.service.List(r.Context(), offset, limit)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"donations": items,
		"offset":    offset,
		"limit":     limit,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return def
	}
	return n
}
