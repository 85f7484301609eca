package models

import (
	"time"

	"textpesa/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Users & Sessions
// ============================================================

// User represents a wallet user keyed by phone number. The authentication
// session is embedded so every state transition is a single-row update.
type User struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	PhoneNumber   string              `gorm:"uniqueIndex;size:20;not null" json:"phone_number"`
	WalletAddress string              `gorm:"size:128" json:"wallet_address"`
	PinHash       string              `gorm:"size:255" json:"-"`
	BalanceINR    decimal.Decimal     `gorm:"type:decimal(20,6);default:0" json:"balance_inr"`
	BalancePYUSD  decimal.Decimal     `gorm:"type:decimal(20,6);default:0" json:"balance_pyusd"`
	Session       domain.SessionState `gorm:"embedded;embeddedPrefix:session_" json:"session"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// HasPin reports whether the user has completed PIN setup.
func (u *User) HasPin() bool {
	return u.PinHash != ""
}

// UserResponse DTO for the ops console
type UserResponse struct {
	ID          uint               `json:"id"`
	PhoneNumber string             `json:"phone_number"`
	Step        domain.SessionStep `json:"step"`
	HasPin      bool               `json:"has_pin"`
	BalanceINR  string             `json:"balance_inr"`
	CreatedAt   time.Time          `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		Step:        u.Session.Step,
		HasPin:      u.HasPin(),
		BalanceINR:  u.BalanceINR.StringFixed(2),
		CreatedAt:   u.CreatedAt,
	}
}

// ============================================================
// Payments
// ============================================================

// Transaction statuses
const (
	TxCompleted = "COMPLETED"
	TxFailed    = "FAILED"
)

// Transaction types
const (
	TxTypePay        = "PAY"
	TxTypeSell       = "SELL"
	TxTypeLoanCredit = "LOAN_CREDIT"
	TxTypeClubPayout = "CLUB_PAYOUT"
)

// Transaction is a value movement initiated over SMS
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Ref       string          `gorm:"uniqueIndex;size:36;not null" json:"ref"`
	Type      string          `gorm:"size:20;not null;index" json:"type"`
	FromPhone string          `gorm:"size:20;index" json:"from_phone"`
	ToPhone   string          `gorm:"size:20;index" json:"to_phone"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Currency  string          `gorm:"size:8;not null" json:"currency"`
	Note      string          `gorm:"size:160" json:"note"`
	Status    string          `gorm:"size:20;not null;index" json:"status"`
	Error     string          `gorm:"size:255" json:"error,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// LoanOffer statuses
const (
	LoanOffered  = "OFFERED"
	LoanAccepted = "ACCEPTED"
)

// LoanOffer is a pre-approved micro-loan a user can accept by SMS
type LoanOffer struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Phone      string          `gorm:"size:20;not null;index" json:"phone"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Currency   string          `gorm:"size:8;not null;default:'INR'" json:"currency"`
	Status     string          `gorm:"size:20;not null;default:'OFFERED';index" json:"status"`
	AcceptedAt *time.Time      `json:"accepted_at,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (LoanOffer) TableName() string {
	return "loan_offers"
}

// ============================================================
// Merchants
// ============================================================

// Merchant is a business registered to request payments
type Merchant struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Phone        string         `gorm:"uniqueIndex;size:20;not null" json:"phone"`
	BusinessName string         `gorm:"size:100;not null" json:"business_name"`
	Code         string         `gorm:"uniqueIndex;size:12;not null" json:"code"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Merchant) TableName() string {
	return "merchants"
}

// PaymentRequest is an SMS payment request issued by a merchant to a payer
type PaymentRequest struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	MerchantPhone string          `gorm:"size:20;not null;index" json:"merchant_phone"`
	PayerPhone    string          `gorm:"size:20;not null;index" json:"payer_phone"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Currency      string          `gorm:"size:8;not null" json:"currency"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentRequest) TableName() string {
	return "payment_requests"
}

// ============================================================
// Savings Clubs
// ============================================================

// SavingsClub is a shared pot funded by member deposits
type SavingsClub struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"uniqueIndex;size:60;not null" json:"name"`
	CreatorPhone string          `gorm:"size:20;not null" json:"creator_phone"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"balance"`
	Currency     string          `gorm:"size:8;not null;default:'PYUSD'" json:"currency"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Members      []ClubMember    `gorm:"foreignKey:ClubID" json:"members,omitempty"`
}

func (SavingsClub) TableName() string {
	return "savings_clubs"
}

// ClubMember links a phone number to a club
type ClubMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClubID    uint      `gorm:"not null;index:idx_club_phone,unique" json:"club_id"`
	Phone     string    `gorm:"size:20;not null;index:idx_club_phone,unique" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ClubMember) TableName() string {
	return "club_members"
}

// Proposal statuses
const (
	ProposalOpen     = "OPEN"
	ProposalApproved = "APPROVED"
	ProposalRejected = "REJECTED"
)

// PayoutProposal is a member's proposal to pay out part of the club pot.
// It executes once a strict majority of members votes yes.
type PayoutProposal struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"uniqueIndex;size:12;not null" json:"code"`
	ClubID         uint            `gorm:"not null;index" json:"club_id"`
	ProposerPhone  string          `gorm:"size:20;not null" json:"proposer_phone"`
	RecipientPhone string          `gorm:"size:20;not null" json:"recipient_phone"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Status         string          `gorm:"size:20;not null;default:'OPEN';index" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (PayoutProposal) TableName() string {
	return "payout_proposals"
}

// ProposalVote is a member's yes/no vote on a payout proposal
type ProposalVote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProposalID uint      `gorm:"not null;index:idx_proposal_voter,unique" json:"proposal_id"`
	Phone      string    `gorm:"size:20;not null;index:idx_proposal_voter,unique" json:"phone"`
	Approve    bool      `gorm:"not null" json:"approve"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProposalVote) TableName() string {
	return "proposal_votes"
}

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Transaction{},
		&LoanOffer{},
		&Merchant{},
		&PaymentRequest{},
		&SavingsClub{},
		&ClubMember{},
		&PayoutProposal{},
		&ProposalVote{},
	)
}
