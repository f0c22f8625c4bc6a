package charge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	errors "github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/core/common/validation"
	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/pixgateway"
	"github.com/rhodrigo081/doare.back/internal/registry"
)

// GatewayAPI is the slice of the PIX client this flow needs.
type GatewayAPI interface {
	CreateCharge(ctx context.Context, req pixgateway.ChargeRequest) (*pixgateway.Charge, error)
}

// RegistryAPI resolves donor identity against the partner registry.
type RegistryAPI interface {
	FindByTaxID(ctx context.Context, taxID string) (*registry.Partner, error)
}

type Service struct {
	gateway  GatewayAPI
	registry RegistryAPI
	logger   *slog.Logger
}

func NewService(gateway GatewayAPI, reg RegistryAPI, logger *slog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		registry: reg,
		logger:   logger,
	}
}

// NewTxID generates the transaction id for a fresh charge. PIX txids must be
// 26-35 alphanumeric characters, so a dash-less uuid fits exactly.
func NewTxID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateCharge validates the donor input, resolves the donor against the
// registry, and opens a gateway charge. No donation row is written here: the
// store only learns about this transaction when a webhook arrives.
func (s *Service) CreateCharge(ctx context.Context, req *CreateChargeRequest) (*ChargeData, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taxID := validation.CleanTaxID(req.DonorTaxID)

	partner, err := s.registry.FindByTaxID(ctx, taxID)
	if err != nil {
		// NotFound means the donor is not registered; typed errors from the
		// registry client pass through unchanged.
		return nil, err
	}

	txID := NewTxID()
	gatewayCharge, err := s.gateway.CreateCharge(ctx, pixgateway.ChargeRequest{
		TxID:        txID,
		AmountCents: req.AmountCents(),
		PayerTaxID:  taxID,
		PayerName:   partner.Name,
	})
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, errors.NewExternalError("failed to create gateway charge", errors.ErrCodeGatewayRequest, err)
	}

	s.logger.Info("charge created",
		"tx_id", gatewayCharge.TxID,
		"donor_tax_id", taxID,
		"amount_cents", req.AmountCents())

	registryRef := partner.ID
	return &ChargeData{
		DonorName:        partner.Name,
		DonorRegistryRef: &registryRef,
		Amount:           req.Amount,
		TxID:             gatewayCharge.TxID,
		LocID:            gatewayCharge.LocID,
		QRCode:           gatewayCharge.QRCode,
		CopyPaste:        gatewayCharge.CopyPaste,
		Status:           donation.StatusAwaitingPayment,
		CreatedAt:        gatewayCharge.CreatedAt,
	}, nil
}
