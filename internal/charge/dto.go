package charge

import (
	"math"
	"time"

	errors "github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/core/common/validation"
)

// CreateChargeRequest is the donor-facing input: who is donating and how much.
type CreateChargeRequest struct {
	DonorTaxID string  `json:"donorTaxId"`
	Amount     float64 `json:"amount"`
}

func (r *CreateChargeRequest) Validate() error {
	validator := validation.NewValidator()
	validator.Field("donorTaxId", r.DonorTaxID).Required()
	validator.Field("amount", r.Amount).Required().PositiveAmount(errors.ErrCodeInvalidAmount)
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}

	if appErr := validation.ValidateTaxID(r.DonorTaxID); appErr != nil {
		return appErr
	}
	return nil
}

// AmountCents converts the request amount to minor units.
func (r *CreateChargeRequest) AmountCents() int64 {
	return int64(math.Round(r.Amount * 100))
}

// ChargeData is the charge-presentation view returned to the caller. It is a
// read-through of the gateway charge plus resolved donor identity; nothing is
// persisted until a confirming webhook arrives.
type ChargeData struct {
	DonorName        string    `json:"donorName"`
	DonorRegistryRef *string   `json:"donorRegistryRef"`
	Amount           float64   `json:"amount"`
	TxID             string    `json:"txId"`
	LocID            int64     `json:"locId"`
	QRCode           string    `json:"qrCode"`
	CopyPaste        string    `json:"copyPaste"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}
