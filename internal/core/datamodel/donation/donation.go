package donation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Donation statuses owned by the reconciliation path. Any other value stored
// in the status column is a gateway-reported status recorded verbatim.
const (
	StatusAwaitingPayment = "AWAITING_PAYMENT"
	StatusPaid            = "PAID"
)

type Donation struct {
	ID               string    `gorm:"primaryKey;column:id"`
	DonorTaxID       string    `gorm:"column:donor_tax_id;not null"`
	DonorName        string    `gorm:"column:donor_name;not null"`
	DonorRegistryRef *string   `gorm:"column:donor_registry_ref"`
	AmountCents      int64     `gorm:"column:amount_cents;not null"`
	TxID             string    `gorm:"column:tx_id;not null;index"`
	LocID            int64     `gorm:"column:loc_id"`
	QRCode           string    `gorm:"column:qr_code"`
	CopyPaste        string    `gorm:"column:copy_paste"`
	Status           string    `gorm:"column:status;default:AWAITING_PAYMENT"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Donation) TableName() string {
	return "donations"
}

// BeforeCreate assigns the store id and first-persistence timestamp.
// CreatedAt is immutable afterwards; only UpdatedAt moves on writes.
func (d *Donation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return nil
}

func (d *Donation) BeforeUpdate(tx *gorm.DB) error {
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// Amount returns the decimal value in currency units, e.g. 5000 cents -> 50.00.
func (d *Donation) Amount() float64 {
	return float64(d.AmountCents) / 100
}

func (d *Donation) IsPaid() bool {
	return d.Status == StatusPaid
}
