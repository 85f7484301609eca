package repositories

import (
	"context"
	"errors"
	"time"

	"textpesa/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// LoanRepository defines loan-offer persistence operations
type LoanRepository interface {
	Create(ctx context.Context, offer *models.LoanOffer) error
	LatestOffered(ctx context.Context, phone string) (*models.LoanOffer, error)
	MarkAccepted(ctx context.Context, id uint, at time.Time) error
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create creates a loan offer
func (r *loanRepository) Create(ctx context.Context, offer *models.LoanOffer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

// LatestOffered returns the newest unaccepted offer for phone, or nil
func (r *loanRepository) LatestOffered(ctx context.Context, phone string) (*models.LoanOffer, error) {
	var offer models.LoanOffer
	err := r.db.WithContext(ctx).
		Where("phone = ? AND status = ?", phone, models.LoanOffered).
		Order("created_at DESC").
		First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// MarkAccepted marks an offer as accepted
func (r *loanRepository) MarkAccepted(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.LoanOffer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.LoanAccepted,
			"accepted_at": at,
		}).Error
}
