package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/core/domain"

	"go.uber.org/zap"
)

// Reply is a side-effect description produced by a session transition: an
// SMS to queue. To is empty when the reply goes to the initiating number.
type Reply struct {
	To       string
	Body     string
	Priority domain.Priority
}

// User-facing templates for the challenge flow
const (
	msgPinSetupRequired = "Welcome to TextPesa! Before sending money, set a 4-digit PIN: reply SET PIN 1234 (choose your own digits)."
	msgPinSet           = "Your PIN is set. You can now send money, e.g. PAY 500 INR to +919876543210."
	msgPinChangeDenied  = "You can't change your PIN right now. Finish or RESET the current action first."
	msgOtpPrompt        = "Your TextPesa code is %s. It expires in %d minutes. Reply with the code to confirm your %s."
	msgOtpThrottled     = "We just sent you a code. Please wait a minute before requesting another."
	msgOtpExpired       = "That code has expired and your request was cancelled. Please start again."
	msgOtpMismatch      = "Incorrect code. Please check the SMS we sent you and try again."
	msgOtpExhausted     = "Too many wrong codes. Your request was cancelled. Please start again."
	msgPinPrompt        = "Code accepted. Now reply with your 4-digit PIN to confirm."
	msgPinMismatch      = "Incorrect PIN. %d attempt(s) remaining."
	msgLocked           = "Your account is locked after too many wrong PINs. Reply RESET to unlock it."
	msgReset            = "Your session has been reset. Reply HELP for the menu."
	msgNothingPending   = "There's nothing waiting for that. Reply HELP for the menu."
)

// SessionService drives the per-user authentication state machine. Every
// transition runs inside a single locked read-modify-write on the user row,
// so OTP and PIN entries arriving in quick succession serialize cleanly.
// Methods return Reply effects; callers queue them — the machine itself
// never touches the outbox or the SMS transport.
type SessionService struct {
	users          UserStore
	challenge      *ChallengeService
	pinMaxAttempts int
	otpMaxAttempts int
	now            func() time.Time
	logger         *zap.SugaredLogger
}

// NewSessionService creates the session state machine.
func NewSessionService(users UserStore, challenge *ChallengeService, pinMaxAttempts, otpMaxAttempts int, logger *zap.SugaredLogger) *SessionService {
	return &SessionService{
		users:          users,
		challenge:      challenge,
		pinMaxAttempts: pinMaxAttempts,
		otpMaxAttempts: otpMaxAttempts,
		now:            time.Now,
		logger:         logger,
	}
}

// SetPin hashes and stores the user's PIN. Valid from AWAITING_PIN_SETUP and
// IDLE only — a PIN change mid-challenge or while locked is refused.
func (s *SessionService) SetPin(ctx context.Context, phoneNumber, pin string) ([]Reply, error) {
	var replies []Reply
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		s.repair(user)

		switch user.Session.Step {
		case domain.StepAwaitingPinSetup, domain.StepIdle:
		default:
			replies = reply(msgPinChangeDenied)
			return nil
		}

		hash, err := s.challenge.HashPin(pin)
		if err != nil {
			return err
		}
		user.PinHash = hash
		user.Session.Step = domain.StepIdle
		replies = reply(msgPinSet)
		return nil
	})
	return replies, err
}

// Reset returns the session to IDLE from any state, clearing the OTP, the
// pending command and the failed-attempt counter. This is the only way out
// of LOCKED.
func (s *SessionService) Reset(ctx context.Context, phoneNumber string) ([]Reply, error) {
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		user.Session.Reset()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("session reset", "phone", phoneNumber)
	return reply(msgReset), nil
}

// BeginChallenge starts the OTP+PIN challenge for a value-moving command:
// issues an OTP (invalidating any outstanding one), stores cmd as the
// pending command and moves the session to AWAITING_OTP.
func (s *SessionService) BeginChallenge(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) ([]Reply, error) {
	var replies []Reply
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		s.repair(user)

		if user.Session.Step == domain.StepLocked {
			replies = replyHigh(msgLocked)
			return nil
		}
		if !user.HasPin() {
			replies = reply(msgPinSetupRequired)
			return nil
		}

		code, expiresAt, err := s.challenge.GenerateOtp(ctx, phoneNumber)
		if errors.Is(err, ErrOtpThrottled) {
			replies = reply(msgOtpThrottled)
			return nil
		}
		if err != nil {
			return err
		}

		if err := user.Session.SetPending(cmd); err != nil {
			return err
		}
		user.Session.SetOtp(code, expiresAt)
		user.Session.Step = domain.StepAwaitingOtp

		minutes := int(expiresAt.Sub(s.now()).Minutes())
		replies = replyHigh(fmt.Sprintf(msgOtpPrompt, code, minutes, cmd.Label()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("challenge started", "phone", phoneNumber, "command", cmd.Type)
	return replies, nil
}

// SubmitOtp checks a 6-digit code against the outstanding OTP. A match moves
// the session to AWAITING_PIN; expiry cancels the pending command; a
// mismatch consumes one of the bounded OTP attempts.
func (s *SessionService) SubmitOtp(ctx context.Context, phoneNumber, code string) ([]Reply, error) {
	var replies []Reply
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		s.repair(user)

		switch user.Session.Step {
		case domain.StepLocked:
			replies = replyHigh(msgLocked)
			return nil
		case domain.StepAwaitingOtp:
		default:
			replies = reply(msgNothingPending)
			return nil
		}

		if !user.Session.OtpValid(s.now()) {
			user.Session.ClearChallenge()
			user.Session.Step = domain.StepIdle
			replies = reply(msgOtpExpired)
			return nil
		}

		if user.Session.Otp != code {
			user.Session.OtpAttempts++
			if user.Session.OtpAttempts >= s.otpMaxAttempts {
				user.Session.ClearChallenge()
				user.Session.Step = domain.StepIdle
				replies = reply(msgOtpExhausted)
				return nil
			}
			replies = reply(msgOtpMismatch)
			return nil
		}

		user.Session.Step = domain.StepAwaitingPin
		replies = replyHigh(msgPinPrompt)
		return nil
	})
	return replies, err
}

// SubmitPin verifies the 4-digit PIN that completes a challenge. On success
// it clears the challenge, returns the session to IDLE and hands the pending
// command back to the caller for execution. The OTP must still be unexpired
// even when the PIN is correct — a challenge can't outlive its code.
func (s *SessionService) SubmitPin(ctx context.Context, phoneNumber, pin string) (*domain.ParsedCommand, []Reply, error) {
	var pending *domain.ParsedCommand
	var replies []Reply
	err := s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		s.repair(user)

		switch user.Session.Step {
		case domain.StepLocked:
			replies = replyHigh(msgLocked)
			return nil
		case domain.StepAwaitingPinSetup:
			replies = reply(msgPinSetupRequired)
			return nil
		case domain.StepAwaitingPin:
		default:
			replies = reply(msgNothingPending)
			return nil
		}

		if !user.Session.OtpValid(s.now()) {
			user.Session.ClearChallenge()
			user.Session.Step = domain.StepIdle
			replies = reply(msgOtpExpired)
			return nil
		}

		if !s.challenge.VerifyPin(pin, user.PinHash) {
			user.Session.FailedAttempts++
			if user.Session.FailedAttempts >= s.pinMaxAttempts {
				user.Session.ClearChallenge()
				user.Session.Step = domain.StepLocked
				replies = replyHigh(msgLocked)
				s.logger.Warnw("account locked", "phone", phoneNumber)
				return nil
			}
			remaining := s.pinMaxAttempts - user.Session.FailedAttempts
			replies = reply(fmt.Sprintf(msgPinMismatch, remaining))
			return nil
		}

		cmd, err := user.Session.Pending()
		if err != nil {
			return err
		}
		pending = cmd
		user.Session.ClearChallenge()
		user.Session.FailedAttempts = 0
		user.Session.Step = domain.StepIdle
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if pending != nil {
		s.logger.Infow("challenge completed", "phone", phoneNumber, "command", pending.Type)
	}
	return pending, replies, nil
}

// repair enforces the pending-command integrity invariant before any
// transition: a challenge step without a backing command is corrupt state
// and is returned to IDLE instead of trusted.
func (s *SessionService) repair(user *models.User) {
	if !user.Session.Consistent() {
		s.logger.Warnw("repaired inconsistent session", "phone", user.PhoneNumber, "step", user.Session.Step)
		user.Session.Reset()
	}
}

func reply(body string) []Reply {
	return []Reply{{Body: body, Priority: domain.PriorityNormal}}
}

func replyHigh(body string) []Reply {
	return []Reply{{Body: body, Priority: domain.PriorityHigh}}
}
