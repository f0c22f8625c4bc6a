package charge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/transport"
)

type ServiceAPI interface {
	CreateCharge(ctx context.Context, req *CreateChargeRequest) (*ChargeData, error)
}

type Handler struct {
	*transport.BaseHandler
	service ServiceAPI
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// CreateCharge answers 201 with the charge presentation data, 409 for
// validation failures and unregistered donors, 502 for gateway failures.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid charge request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chargeData, err := h.service.CreateCharge(r.Context(), &req)
	if err != nil {
		h.logger.Error("charge creation failed",
			"error", err,
			"donor_tax_id", req.DonorTaxID)

		if appErr, ok := errors.IsAppError(err); ok {
			// The endpoint contract treats an unregistered tax id the same as
			// a malformed one: 409.
			if appErr.Type == errors.ErrorTypeNotFound {
				h.WriteJSON(w, http.StatusConflict, errors.Response{Error: appErr})
				return
			}
			status, body := appErr.ToHTTPResponse()
			h.WriteJSON(w, status, body)
			return
		}
		h.WriteError(w, http.StatusInternalServerError, "failed to create charge")
		return
	}

	h.WriteJSON(w, http.StatusCreated, chargeData)
}
