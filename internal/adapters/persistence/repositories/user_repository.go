package repositories

import (
	"context"
	"time"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines user persistence operations
type UserRepository interface {
	FindOrCreate(ctx context.Context, phone string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	Update(ctx context.Context, phone string, fn func(*models.User) error) error
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	Count(ctx context.Context) (int64, error)
	CountByStep(ctx context.Context, step domain.SessionStep) (int64, error)
	SweepStaleSessions(ctx context.Context, now time.Time) (int64, error)
}

// userRepository implements UserRepository
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindOrCreate returns the user for phone, creating the record (with a fresh
// AWAITING_PIN_SETUP session) on first contact.
func (r *userRepository) FindOrCreate(ctx context.Context, phone string) (*models.User, error) {
	user := models.User{
		PhoneNumber: phone,
		Session:     domain.SessionState{Step: domain.StepAwaitingPinSetup},
	}
	err := r.db.WithContext(ctx).
		Where(models.User{PhoneNumber: phone}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByPhone gets a user by phone number
func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update runs fn against the user row under a SELECT ... FOR UPDATE lock and
// persists the result in the same transaction. Every session transition goes
// through here, so concurrent SMS from one phone serialize instead of
// interleaving a read-then-write pair.
func (r *userRepository) Update(ctx context.Context, phone string, fn func(*models.User) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("phone_number = ?", phone).
			First(&user).Error; err != nil {
			return err
		}
		if err := fn(&user); err != nil {
			return err
		}
		return tx.Save(&user).Error
	})
}

// List lists users with pagination
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Count counts all users
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountByStep counts users whose session is at the given step
func (r *userRepository) CountByStep(ctx context.Context, step domain.SessionStep) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("session_step = ?", step).Count(&count).Error
	return count, err
}

// SweepStaleSessions returns dangling challenge sessions to IDLE: any session
// still in AWAITING_OTP/AWAITING_PIN whose OTP expired is inert and only
// confuses the next inbound message. Returns the number of repaired rows.
func (r *userRepository) SweepStaleSessions(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("session_step IN ?", []domain.SessionStep{domain.StepAwaitingOtp, domain.StepAwaitingPin}).
		Where("session_otp_expires_at IS NULL OR session_otp_expires_at < ?", now).
		Updates(map[string]interface{}{
			"session_step":            domain.StepIdle,
			"session_otp":             "",
			"session_otp_expires_at":  nil,
			"session_otp_attempts":    0,
			"session_pending_command": "",
		})
	return res.RowsAffected, res.Error
}
