package donation

import (
	"context"
	"log/slog"

	errors "github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/core/events"
	"github.com/rhodrigo081/doare.back/internal/pixgateway"
	"github.com/rhodrigo081/doare.back/internal/registry"
)

// Repository is the donation store as the engine sees it. GetByTxID returns
// (nil, nil) when no record exists: absence is a decision input, not an error.
type Repository interface {
	Create(d *donation.Donation) error
	GetByID(id string) (*donation.Donation, error)
	GetByTxID(txID string) (*donation.Donation, error)
	UpdateStatus(id string, status string) error
	List(offset, limit int) ([]*donation.Donation, error)
}

type GatewayAPI interface {
	GetChargeDetails(ctx context.Context, txID string) (*pixgateway.ChargeDetails, error)
}

type RegistryAPI interface {
	FindByTaxID(ctx context.Context, taxID string) (*registry.Partner, error)
}

// Action is one row of the reconciliation decision table over
// (recordExists, isConfirmed, statusesDiffer).
type Action int

const (
	// ActionNone: no record and no confirmation, or an existing record whose
	// status already matches the report. Nothing to do.
	ActionNone Action = iota
	// ActionReplay: the record is already PAID and the gateway confirms it
	// again. Idempotent no-op, no notification.
	ActionReplay
	// ActionConfirm: an existing not-yet-paid record transitions to PAID.
	ActionConfirm
	// ActionMaterialize: first confirming webhook for an unknown txid creates
	// the donation from authoritative gateway fields.
	ActionMaterialize
	// ActionOverwriteStatus: a non-confirming report differs from the stored
	// status; the stored status is overwritten verbatim.
	ActionOverwriteStatus
)

// Decide maps the reconciliation inputs onto an Action. PAID records
// short-circuit into replay before anything else, so a paid donation can
// never regress.
func Decide(existing *donation.Donation, confirmed bool, reportedStatus string) Action {
	recordExists := existing != nil

	switch {
	case recordExists && existing.Status == donation.StatusPaid:
		// terminal: a redelivered confirmation is a replay, any other report
		// is ignored
		if confirmed {
			return ActionReplay
		}
		return ActionNone
	case recordExists && confirmed:
		return ActionConfirm
	case !recordExists && confirmed:
		return ActionMaterialize
	case recordExists && existing.Status != reportedStatus:
		return ActionOverwriteStatus
	default:
		return ActionNone
	}
}

// MapGatewayStatus translates the gateway's charge status into the stored
// donation status. Anything unrecognized is stored verbatim.
func MapGatewayStatus(gatewayStatus string) string {
	switch gatewayStatus {
	case pixgateway.StatusCompleted:
		return donation.StatusPaid
	case pixgateway.StatusActive:
		return donation.StatusAwaitingPayment
	default:
		return gatewayStatus
	}
}

// Service is the reconciliation engine. It owns every write to a donation's
// status; concurrency safety comes from re-deriving the decision from current
// stored state plus freshly fetched authoritative state on every call, not
// from locks.
type Service struct {
	repo     Repository
	gateway  GatewayAPI
	registry RegistryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewService(repo Repository, gateway GatewayAPI, reg RegistryAPI, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		registry: reg,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Reconcile processes one webhook notification. It returns the donation the
// notification resolved to, or nil when there is nothing to report (unknown
// txid with an unconfirmed charge). Safe to call any number of times for the
// same txid.
func (s *Service) Reconcile(ctx context.Context, txID string) (*donation.Donation, error) {
	if txID == "" {
		return nil, errors.NewValidationError("notification carries no transaction id", errors.ErrCodeMissingTxID)
	}

	existing, err := s.repo.GetByTxID(txID)
	if err != nil {
		return nil, errors.Wrap(err, txID)
	}

	details, err := s.gateway.GetChargeDetails(ctx, txID)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, errors.NewExternalError("failed to fetch charge details", errors.ErrCodeGatewayRequest, err)
	}

	confirmed := details.Status == pixgateway.StatusCompleted
	reportedStatus := MapGatewayStatus(details.Status)

	switch Decide(existing, confirmed, reportedStatus) {
	case ActionReplay:
		s.logger.Info("duplicate confirmation ignored", "tx_id", txID)
		return existing, nil

	case ActionConfirm:
		if err := s.repo.UpdateStatus(existing.ID, donation.StatusPaid); err != nil {
			return nil, errors.Wrap(err, txID)
		}
		existing.Status = donation.StatusPaid
		s.logger.Info("donation confirmed", "tx_id", txID, "donation_id", existing.ID)
		s.notifyPaid(ctx, existing)
		return existing, nil

	case ActionMaterialize:
		created, err := s.materialize(ctx, details)
		if err != nil {
			return nil, err
		}
		s.notifyPaid(ctx, created)
		return created, nil

	case ActionOverwriteStatus:
		s.logger.Warn("overwriting stored status from gateway report",
			"tx_id", txID,
			"stored_status", existing.Status,
			"reported_status", reportedStatus)
		if err := s.repo.UpdateStatus(existing.ID, reportedStatus); err != nil {
			return nil, errors.Wrap(err, txID)
		}
		existing.Status = reportedStatus
		return existing, nil

	default:
		if existing != nil {
			return existing, nil
		}
		s.logger.Debug("unconfirmed charge with no stored record", "tx_id", txID, "status", details.Status)
		return nil, nil
	}
}

// materialize creates the donation row from the authoritative gateway charge.
// The payer identity and amount must all be present; a partial record is
// never created. Registry-ref resolution is best-effort and never blocks.
func (s *Service) materialize(ctx context.Context, details *pixgateway.ChargeDetails) (*donation.Donation, error) {
	if details.PayerTaxID == "" || details.PayerName == "" || details.Amount == "" {
		return nil, errors.NewValidationError(
			"gateway charge is missing payer identity or amount", errors.ErrCodeIncompleteCharge)
	}

	amountCents, err := pixgateway.ParseAmount(details.Amount)
	if err != nil {
		return nil, errors.NewValidationError(
			"gateway charge carries an unparseable amount", errors.ErrCodeIncompleteCharge).WithCause(err)
	}
	if amountCents <= 0 {
		return nil, errors.NewValidationError(
			"gateway charge carries a non-positive amount", errors.ErrCodeIncompleteCharge)
	}

	var registryRef *string
	if partner, err := s.registry.FindByTaxID(ctx, details.PayerTaxID); err == nil {
		registryRef = &partner.ID
	} else {
		s.logger.Debug("registry ref not resolved for materialized donation",
			"tx_id", details.TxID, "error", err)
	}

	d := &donation.Donation{
		DonorTaxID:       details.PayerTaxID,
		DonorName:        details.PayerName,
		DonorRegistryRef: registryRef,
		AmountCents:      amountCents,
		TxID:             details.TxID,
		LocID:            details.LocID,
		QRCode:           details.Location,
		CopyPaste:        details.CopyPaste,
		Status:           donation.StatusPaid,
	}

	if err := s.repo.Create(d); err != nil {
		return nil, errors.Wrap(err, details.TxID)
	}

	s.logger.Info("donation materialized from confirming webhook",
		"tx_id", details.TxID,
		"donation_id", d.ID,
		"amount_cents", amountCents)
	return d, nil
}

func (s *Service) notifyPaid(ctx context.Context, d *donation.Donation) {
	event := events.NewDonationPaidEvent(d)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish donation paid event",
			"tx_id", d.TxID, "error", err)
	}
}

// GetByTxID serves read-only lookups for reporting consumers.
func (s *Service) GetByTxID(ctx context.Context, txID string) (*donation.Donation, error) {
	if txID == "" {
		return nil, errors.NewValidationError("transaction id is required", errors.ErrCodeMissingTxID)
	}
	d, err := s.repo.GetByTxID(txID)
	if err != nil {
		return nil, errors.Wrap(err, txID)
	}
	if d == nil {
		return nil, errors.ErrDonationNotFound
	}
	return d, nil
}

// List is a paginated read-only scan for reporting consumers.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*donation.Donation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.repo.List(offset, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list donations", err)
	}
	return items, nil
}
