package repositories

import (
	"context"
	"errors"

	"textpesa/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClubRepository defines savings-club persistence operations
type ClubRepository interface {
	Create(ctx context.Context, club *models.SavingsClub, members []string) error
	GetByName(ctx context.Context, name string) (*models.SavingsClub, error)
	GetByID(ctx context.Context, id uint) (*models.SavingsClub, error)
	LatestClubForMember(ctx context.Context, phone string) (*models.SavingsClub, error)
	IsMember(ctx context.Context, clubID uint, phone string) (bool, error)
	Members(ctx context.Context, clubID uint) ([]models.ClubMember, error)
	MemberCount(ctx context.Context, clubID uint) (int64, error)
	UpdateBalance(ctx context.Context, clubID uint, fn func(*models.SavingsClub) error) error
	CreateProposal(ctx context.Context, proposal *models.PayoutProposal) error
	GetProposalByCode(ctx context.Context, code string) (*models.PayoutProposal, error)
	UpdateProposalStatus(ctx context.Context, id uint, status string) error
	CreateVote(ctx context.Context, vote *models.ProposalVote) error
	HasVoted(ctx context.Context, proposalID uint, phone string) (bool, error)
	CountVotes(ctx context.Context, proposalID uint) (yes int64, no int64, err error)
}

type clubRepository struct {
	db *gorm.DB
}

// NewClubRepository creates a new club repository
func NewClubRepository(db *gorm.DB) ClubRepository {
	return &clubRepository{db: db}
}

// Create creates a club and its member rows in one transaction
func (r *clubRepository) Create(ctx context.Context, club *models.SavingsClub, members []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(club).Error; err != nil {
			return err
		}
		for _, phone := range members {
			member := models.ClubMember{ClubID: club.ID, Phone: phone}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByName returns the club with the given name, or nil
func (r *clubRepository) GetByName(ctx context.Context, name string) (*models.SavingsClub, error) {
	var club models.SavingsClub
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&club).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &club, nil
}

// GetByID returns a club by id
func (r *clubRepository) GetByID(ctx context.Context, id uint) (*models.SavingsClub, error) {
	var club models.SavingsClub
	err := r.db.WithContext(ctx).First(&club, id).Error
	if err != nil {
		return nil, err
	}
	return &club, nil
}

// LatestClubForMember returns the most recently joined club of phone, or nil
func (r *clubRepository) LatestClubForMember(ctx context.Context, phone string) (*models.SavingsClub, error) {
	var member models.ClubMember
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		Order("created_at DESC").
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, member.ClubID)
}

// IsMember reports whether phone belongs to the club
func (r *clubRepository) IsMember(ctx context.Context, clubID uint, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ClubMember{}).
		Where("club_id = ? AND phone = ?", clubID, phone).Count(&count).Error
	return count > 0, err
}

// Members lists the club's members
func (r *clubRepository) Members(ctx context.Context, clubID uint) ([]models.ClubMember, error) {
	var members []models.ClubMember
	err := r.db.WithContext(ctx).Where("club_id = ?", clubID).Find(&members).Error
	return members, err
}

// MemberCount counts the club's members
func (r *clubRepository) MemberCount(ctx context.Context, clubID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ClubMember{}).
		Where("club_id = ?", clubID).Count(&count).Error
	return count, err
}

// UpdateBalance runs fn against the club row under a row lock
func (r *clubRepository) UpdateBalance(ctx context.Context, clubID uint, fn func(*models.SavingsClub) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var club models.SavingsClub
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&club, clubID).Error; err != nil {
			return err
		}
		if err := fn(&club); err != nil {
			return err
		}
		return tx.Save(&club).Error
	})
}

// CreateProposal records a payout proposal
func (r *clubRepository) CreateProposal(ctx context.Context, proposal *models.PayoutProposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

// GetProposalByCode returns a proposal by its short code, or nil
func (r *clubRepository) GetProposalByCode(ctx context.Context, code string) (*models.PayoutProposal, error) {
	var proposal models.PayoutProposal
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&proposal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// UpdateProposalStatus sets a proposal's status
func (r *clubRepository) UpdateProposalStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.PayoutProposal{}).
		Where("id = ?", id).Update("status", status).Error
}

// CreateVote records a member's vote
func (r *clubRepository) CreateVote(ctx context.Context, vote *models.ProposalVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

// HasVoted reports whether phone has already voted on the proposal
func (r *clubRepository) HasVoted(ctx context.Context, proposalID uint, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProposalVote{}).
		Where("proposal_id = ? AND phone = ?", proposalID, phone).Count(&count).Error
	return count > 0, err
}

// CountVotes tallies votes on a proposal
func (r *clubRepository) CountVotes(ctx context.Context, proposalID uint) (int64, int64, error) {
	var yes, no int64
	if err := r.db.WithContext(ctx).Model(&models.ProposalVote{}).
		Where("proposal_id = ? AND approve = ?", proposalID, true).Count(&yes).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.ProposalVote{}).
		Where("proposal_id = ? AND approve = ?", proposalID, false).Count(&no).Error; err != nil {
		return 0, 0, err
	}
	return yes, no, nil
}
