package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	donationpkg "github.com/rhodrigo081/doare.back/internal/donation"
)

type DonationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) donationpkg.Repository {
	return &DonationRepository{
		db: db,
	}
}

func (r *DonationRepository) Create(d *donation.Donation) error {
	return r.db.Create(d).Error
}

func (r *DonationRepository) GetByID(id string) (*donation.Donation, error) {
	var d donation.Donation
	err := r.db.Where("id = ?", id).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByTxID returns nil without error when no record exists for the txid;
// the reconciliation engine treats absence as a decision input.
func (r *DonationRepository) GetByTxID(txID string) (*donation.Donation, error) {
	var d donation.Donation
	err := r.db.Where("tx_id = ?", txID).Order("created_at DESC").First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateStatus writes status and updated_at only; every other column,
// created_at included, stays untouched.
func (r *DonationRepository) UpdateStatus(id string, status string) error {
	return r.db.Model(&donation.Donation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *DonationRepository) List(offset, limit int) ([]*donation.Donation, error) {
	var donations []*donation.Donation
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&donations).Error
	return donations, err
}
