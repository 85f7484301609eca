package repositories

import (
	"context"
	"errors"

	"textpesa/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// MerchantRepository defines merchant persistence operations
type MerchantRepository interface {
	Create(ctx context.Context, merchant *models.Merchant) error
	GetByPhone(ctx context.Context, phone string) (*models.Merchant, error)
	CreateRequest(ctx context.Context, req *models.PaymentRequest) error
}

type merchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository creates a new merchant repository
func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

// Create registers a merchant
func (r *merchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

// GetByPhone returns the merchant registered under phone, or nil
func (r *merchantRepository) GetByPhone(ctx context.Context, phone string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&merchant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

// CreateRequest records a payment request sent to a payer
func (r *merchantRepository) CreateRequest(ctx context.Context, req *models.PaymentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}
