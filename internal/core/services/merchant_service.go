package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/adapters/persistence/repositories"
	"textpesa/internal/core/domain"

	"go.uber.org/zap"
)

// MerchantService executes the merchant commands: registration, payment
// requests and daily sales reports.
type MerchantService struct {
	merchants repositories.MerchantRepository
	txs       repositories.TransactionRepository
	outbox    *OutboxService
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// NewMerchantService creates the merchant handlers.
func NewMerchantService(
	merchants repositories.MerchantRepository,
	txs repositories.TransactionRepository,
	outbox *OutboxService,
	logger *zap.SugaredLogger,
) *MerchantService {
	return &MerchantService{
		merchants: merchants,
		txs:       txs,
		outbox:    outbox,
		now:       time.Now,
		logger:    logger,
	}
}

// Register registers the sender's number as a merchant under a business name
// and assigns a short merchant code.
func (s *MerchantService) Register(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	existing, err := s.merchants.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return fmt.Sprintf("You're already registered as %s (code %s).", existing.BusinessName, existing.Code), nil
	}

	code, err := shortCode("M")
	if err != nil {
		return "", err
	}
	merchant := &models.Merchant{
		Phone:        phoneNumber,
		BusinessName: cmd.BusinessName,
		Code:         code,
	}
	if err := s.merchants.Create(ctx, merchant); err != nil {
		return "", err
	}

	s.logger.Infow("merchant registered", "phone", phoneNumber, "business", cmd.BusinessName, "code", code)
	return fmt.Sprintf("Merchant registered: %s (code %s). Use REQUEST 200 from +91... to bill customers.",
		cmd.BusinessName, code), nil
}

// RequestPayment sends a pre-filled payment prompt to a payer on the
// merchant's behalf. Only registered merchants may request payments.
func (s *MerchantService) RequestPayment(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	merchant, err := s.merchants.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if merchant == nil {
		return "Register first: MERCHANT REGISTER <business name>.", nil
	}

	req := &models.PaymentRequest{
		MerchantPhone: phoneNumber,
		PayerPhone:    cmd.PayerPhone,
		Amount:        cmd.Amount,
		Currency:      cmd.Currency,
	}
	if err := s.merchants.CreateRequest(ctx, req); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("%s requests %s %s. To pay, reply: PAY %s %s to %s",
		merchant.BusinessName, cmd.Amount.StringFixed(2), cmd.Currency,
		cmd.Amount.String(), cmd.Currency, phoneNumber)
	s.outbox.AddMessage(cmd.PayerPhone, prompt, domain.PriorityNormal)

	s.logger.Infow("payment requested", "merchant", phoneNumber, "payer", cmd.PayerPhone, "amount", cmd.Amount)
	return fmt.Sprintf("Request for %s %s sent to %s.", cmd.Amount.StringFixed(2), cmd.Currency, cmd.PayerPhone), nil
}

// Report summarizes payments the merchant received since midnight.
func (s *MerchantService) Report(ctx context.Context, phoneNumber string, _ *domain.ParsedCommand) (string, error) {
	merchant, err := s.merchants.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if merchant == nil {
		return "Register first: MERCHANT REGISTER <business name>.", nil
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	total, count, err := s.txs.SumCompletedToPhoneSince(ctx, phoneNumber, midnight)
	if err != nil {
		return "", err
	}

	if count == 0 {
		return fmt.Sprintf("%s: no payments received today.", merchant.BusinessName), nil
	}
	return fmt.Sprintf("%s today: %d payment(s), %s INR total.",
		merchant.BusinessName, count, total.StringFixed(2)), nil
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// shortCode generates a prefixed random code like "M-7KQ2TX", short enough to
// type back over SMS. The alphabet drops lookalike characters.
func shortCode(prefix string) (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return prefix + "-" + string(code), nil
}
