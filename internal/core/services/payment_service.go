package services

import (
	"context"
	"fmt"
	"time"

	"textpesa/internal/adapters/events"
	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/adapters/persistence/repositories"
	"textpesa/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService executes the wallet's value-moving commands: PAY, SELL,
// BALANCE, STATUS, ACCEPT and RETRY. By the time a handler runs the command
// has already cleared parsing and, where required, the OTP+PIN challenge —
// this layer checks balances and business rules only.
type PaymentService struct {
	users     repositories.UserRepository
	txs       repositories.TransactionRepository
	loans     repositories.LoanRepository
	outbox    *OutboxService
	publisher events.Publisher
	pyusdRate decimal.Decimal
	logger    *zap.SugaredLogger
}

// NewPaymentService creates the payment handlers. pyusdRate is the INR value
// of one PYUSD used for SELL conversions.
func NewPaymentService(
	users repositories.UserRepository,
	txs repositories.TransactionRepository,
	loans repositories.LoanRepository,
	outbox *OutboxService,
	publisher events.Publisher,
	pyusdRate decimal.Decimal,
	logger *zap.SugaredLogger,
) *PaymentService {
	return &PaymentService{
		users:     users,
		txs:       txs,
		loans:     loans,
		outbox:    outbox,
		publisher: publisher,
		pyusdRate: pyusdRate,
		logger:    logger,
	}
}

// Pay transfers amount from the sender to the recipient and notifies both
// parties. Insufficient funds are a business outcome, not an error: the
// transfer is recorded as FAILED and the sender told why.
func (s *PaymentService) Pay(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	return s.transfer(ctx, phoneNumber, cmd.RecipientPhone, cmd.Amount, cmd.Currency, cmd.Note)
}

func (s *PaymentService) transfer(ctx context.Context, from, to string, amount decimal.Decimal, currency, note string) (string, error) {
	ref := uuid.NewString()

	if from == to {
		return "You can't pay yourself. Reply HELP for the menu.", nil
	}
	if currency != "INR" && currency != "PYUSD" {
		return fmt.Sprintf("Currency %s isn't supported. Use INR or PYUSD.", currency), nil
	}

	debited := false
	err := s.users.Update(ctx, from, func(user *models.User) error {
		balance := balanceFor(user, currency)
		if balance.LessThan(amount) {
			return nil
		}
		setBalance(user, currency, balance.Sub(amount))
		debited = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("debit failed: %w", err)
	}

	if !debited {
		s.record(ctx, ref, models.TxTypePay, from, to, amount, currency, note, models.TxFailed, "insufficient funds")
		s.publisher.Publish(ctx, events.Event{
			Type: events.PaymentFailed, Phone: from, Ref: ref,
			Amount: amount.String(), Currency: currency, Detail: "insufficient funds",
		})
		return fmt.Sprintf("Payment failed: insufficient funds. You need %s %s. Reply BALANCE to check your wallet.",
			amount.StringFixed(2), currency), nil
	}

	// Credit side. The recipient may be a first-time number; that still gets
	// a wallet created for it.
	if _, err := s.users.FindOrCreate(ctx, to); err != nil {
		s.refund(ctx, from, amount, currency)
		return "", fmt.Errorf("recipient lookup failed: %w", err)
	}
	err = s.users.Update(ctx, to, func(user *models.User) error {
		setBalance(user, currency, balanceFor(user, currency).Add(amount))
		return nil
	})
	if err != nil {
		s.refund(ctx, from, amount, currency)
		return "", fmt.Errorf("credit failed: %w", err)
	}

	s.record(ctx, ref, models.TxTypePay, from, to, amount, currency, note, models.TxCompleted, "")
	s.publisher.Publish(ctx, events.Event{
		Type: events.PaymentCompleted, Phone: from, Ref: ref,
		Amount: amount.String(), Currency: currency,
	})

	notice := fmt.Sprintf("You received %s %s from %s.", amount.StringFixed(2), currency, from)
	if note != "" {
		notice += " Note: " + note
	}
	s.outbox.AddMessage(to, notice, domain.PriorityNormal)

	s.logger.Infow("payment completed", "ref", ref, "from", from, "to", to, "amount", amount, "currency", currency)
	return fmt.Sprintf("Sent %s %s to %s. Ref %s.", amount.StringFixed(2), currency, to, shortRef(ref)), nil
}

// Sell converts PYUSD in the sender's wallet into INR at the configured rate.
func (s *PaymentService) Sell(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	if cmd.Currency != "PYUSD" {
		return "Only PYUSD can be sold, e.g. SELL 10.", nil
	}

	ref := uuid.NewString()
	credited := cmd.Amount.Mul(s.pyusdRate)

	sold := false
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		if user.BalancePYUSD.LessThan(cmd.Amount) {
			return nil
		}
		user.BalancePYUSD = user.BalancePYUSD.Sub(cmd.Amount)
		user.BalanceINR = user.BalanceINR.Add(credited)
		sold = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sell failed: %w", err)
	}

	if !sold {
		s.record(ctx, ref, models.TxTypeSell, phoneNumber, phoneNumber, cmd.Amount, cmd.Currency, "", models.TxFailed, "insufficient funds")
		return fmt.Sprintf("Sale failed: you don't have %s PYUSD. Reply BALANCE to check your wallet.",
			cmd.Amount.StringFixed(2)), nil
	}

	s.record(ctx, ref, models.TxTypeSell, phoneNumber, phoneNumber, cmd.Amount, cmd.Currency, "", models.TxCompleted, "")
	s.publisher.Publish(ctx, events.Event{
		Type: events.SellCompleted, Phone: phoneNumber, Ref: ref,
		Amount: cmd.Amount.String(), Currency: cmd.Currency,
	})

	s.logger.Infow("sell completed", "ref", ref, "phone", phoneNumber, "amount", cmd.Amount, "credited_inr", credited)
	return fmt.Sprintf("Sold %s PYUSD for %s INR. Ref %s.",
		cmd.Amount.StringFixed(2), credited.StringFixed(2), shortRef(ref)), nil
}

// Balance reports the sender's wallet balances.
func (s *PaymentService) Balance(ctx context.Context, phoneNumber string, _ *domain.ParsedCommand) (string, error) {
	user, err := s.users.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your balance: %s INR, %s PYUSD.",
		user.BalanceINR.StringFixed(2), user.BalancePYUSD.StringFixed(2)), nil
}

// Status reports the sender's most recent transaction.
func (s *PaymentService) Status(ctx context.Context, phoneNumber string, _ *domain.ParsedCommand) (string, error) {
	tx, err := s.txs.LastByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if tx == nil {
		return "No transactions yet. Reply HELP for the menu.", nil
	}
	line := fmt.Sprintf("Last transaction: %s %s %s", tx.Type, tx.Amount.StringFixed(2), tx.Currency)
	if tx.ToPhone != "" && tx.ToPhone != phoneNumber {
		line += " to " + tx.ToPhone
	}
	line += fmt.Sprintf(" - %s (ref %s).", tx.Status, shortRef(tx.Ref))
	return line, nil
}

// AcceptLoan accepts the sender's newest outstanding loan offer and credits
// the wallet.
func (s *PaymentService) AcceptLoan(ctx context.Context, phoneNumber string, _ *domain.ParsedCommand) (string, error) {
	offer, err := s.loans.LatestOffered(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if offer == nil {
		return "You have no loan offer to accept.", nil
	}

	if err := s.loans.MarkAccepted(ctx, offer.ID, time.Now()); err != nil {
		return "", err
	}
	err = s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		user.BalanceINR = user.BalanceINR.Add(offer.Amount)
		return nil
	})
	if err != nil {
		return "", err
	}

	ref := uuid.NewString()
	s.record(ctx, ref, models.TxTypeLoanCredit, "", phoneNumber, offer.Amount, offer.Currency, "", models.TxCompleted, "")
	s.publisher.Publish(ctx, events.Event{
		Type: events.LoanAccepted, Phone: phoneNumber, Ref: ref,
		Amount: offer.Amount.String(), Currency: offer.Currency,
	})

	s.logger.Infow("loan accepted", "phone", phoneNumber, "offer_id", offer.ID, "amount", offer.Amount)
	return fmt.Sprintf("Loan accepted! %s %s has been credited to your wallet.",
		offer.Amount.StringFixed(2), offer.Currency), nil
}

// Retry re-runs the sender's most recent failed payment with its original
// amount, currency and recipient.
func (s *PaymentService) Retry(ctx context.Context, phoneNumber string, _ *domain.ParsedCommand) (string, error) {
	failed, err := s.txs.LastFailedByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if failed == nil {
		return "You have no failed payment to retry.", nil
	}
	if failed.Type != models.TxTypePay {
		return "Only payments can be retried. Reply STATUS for your last transaction.", nil
	}
	return s.transfer(ctx, phoneNumber, failed.ToPhone, failed.Amount, failed.Currency, failed.Note)
}

// refund restores a debit after the credit side failed. Best-effort; a
// failure here is logged loudly because it means a stuck debit.
func (s *PaymentService) refund(ctx context.Context, phoneNumber string, amount decimal.Decimal, currency string) {
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		setBalance(user, currency, balanceFor(user, currency).Add(amount))
		return nil
	})
	if err != nil {
		s.logger.Errorw("refund failed, balance stuck", "phone", phoneNumber, "amount", amount, "currency", currency, "error", err)
	}
}

func (s *PaymentService) record(ctx context.Context, ref, txType, from, to string, amount decimal.Decimal, currency, note, status, errMsg string) {
	tx := &models.Transaction{
		Ref:       ref,
		Type:      txType,
		FromPhone: from,
		ToPhone:   to,
		Amount:    amount,
		Currency:  currency,
		Note:      note,
		Status:    status,
		Error:     errMsg,
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		s.logger.Errorw("failed to record transaction", "ref", ref, "error", err)
	}
}

func balanceFor(user *models.User, currency string) decimal.Decimal {
	if currency == "PYUSD" {
		return user.BalancePYUSD
	}
	return user.BalanceINR
}

func setBalance(user *models.User, currency string, value decimal.Decimal) {
	if currency == "PYUSD" {
		user.BalancePYUSD = value
		return
	}
	user.BalanceINR = value
}

// shortRef trims a UUID to its first segment for SMS-sized replies.
func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
