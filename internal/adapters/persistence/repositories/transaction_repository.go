package repositories

import (
	"context"
	"errors"
	"time"

	"textpesa/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRepository defines transaction persistence operations
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	LastByPhone(ctx context.Context, phone string) (*models.Transaction, error)
	LastFailedByPhone(ctx context.Context, phone string) (*models.Transaction, error)
	SumCompletedToPhoneSince(ctx context.Context, phone string, since time.Time) (decimal.Decimal, int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create creates a transaction record
func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// LastByPhone returns the most recent transaction initiated by phone
func (r *transactionRepository) LastByPhone(ctx context.Context, phone string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("from_phone = ?", phone).
		Order("created_at DESC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// LastFailedByPhone returns the most recent failed transaction initiated by phone
func (r *transactionRepository) LastFailedByPhone(ctx context.Context, phone string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("from_phone = ? AND status = ?", phone, models.TxFailed).
		Order("created_at DESC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// SumCompletedToPhoneSince totals completed payments received by phone since
// the given time. Used for merchant daily reports.
func (r *transactionRepository) SumCompletedToPhoneSince(ctx context.Context, phone string, since time.Time) (decimal.Decimal, int64, error) {
	type row struct {
		Total decimal.Decimal
		N     int64
	}
	var res row
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS n").
		Where("to_phone = ? AND status = ? AND created_at >= ?", phone, models.TxCompleted, since).
		Scan(&res).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	return res.Total, res.N, nil
}
