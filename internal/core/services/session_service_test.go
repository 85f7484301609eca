package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/core/domain"
	"textpesa/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhone = "+919876543210"

func newTestSession(store *fakeUserStore) *SessionService {
	challenge := NewChallengeService(5*time.Minute, allowAllLimiter{})
	return NewSessionService(store, challenge, 3, 5, logging.Nop())
}

func payCommand() *domain.ParsedCommand {
	return &domain.ParsedCommand{
		Type:           domain.CmdPay,
		Amount:         decimal.NewFromInt(500),
		Currency:       "INR",
		RecipientPhone: "+911111111111",
	}
}

func setupUserWithPin(t *testing.T, store *fakeUserStore, svc *SessionService, pin string) {
	t.Helper()
	ctx := context.Background()
	_, err := store.FindOrCreate(ctx, testPhone)
	require.NoError(t, err)
	_, err = svc.SetPin(ctx, testPhone, pin)
	require.NoError(t, err)
}

func TestSetPinFromSetup(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()

	_, err := store.FindOrCreate(ctx, testPhone)
	require.NoError(t, err)

	replies, err := svc.SetPin(ctx, testPhone, "1234")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgPinSet, replies[0].Body)

	user := store.get(testPhone)
	assert.Equal(t, domain.StepIdle, user.Session.Step)
	assert.True(t, user.HasPin())
	// the raw PIN is never stored
	assert.NotContains(t, user.PinHash, "1234")
}

func TestBeginChallengeWithoutPin(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()

	_, err := store.FindOrCreate(ctx, testPhone)
	require.NoError(t, err)

	replies, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgPinSetupRequired, replies[0].Body)

	user := store.get(testPhone)
	assert.Equal(t, domain.StepAwaitingPinSetup, user.Session.Step)
	assert.Empty(t, user.Session.PendingCommand)
}

func TestChallengeHappyPath(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	// 1. value command starts the challenge
	replies, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, domain.PriorityHigh, replies[0].Priority)

	user := store.get(testPhone)
	assert.Equal(t, domain.StepAwaitingOtp, user.Session.Step)
	require.Len(t, user.Session.Otp, 6)
	assert.Contains(t, replies[0].Body, user.Session.Otp)
	assert.NotEmpty(t, user.Session.PendingCommand)

	// 2. correct OTP advances to the PIN stage
	replies, err = svc.SubmitOtp(ctx, testPhone, user.Session.Otp)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgPinPrompt, replies[0].Body)
	assert.Equal(t, domain.StepAwaitingPin, store.get(testPhone).Session.Step)

	// 3. correct PIN completes the challenge and releases the command
	pending, replies, err := svc.SubmitPin(ctx, testPhone, "1234")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, domain.CmdPay, pending.Type)
	assert.True(t, pending.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "+911111111111", pending.RecipientPhone)
	assert.Empty(t, replies)

	user = store.get(testPhone)
	assert.Equal(t, domain.StepIdle, user.Session.Step)
	assert.Empty(t, user.Session.Otp)
	assert.Empty(t, user.Session.PendingCommand)
	assert.Equal(t, 0, user.Session.FailedAttempts)
}

func TestOtpMismatchAndCap(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	_, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)

	// four wrong guesses keep the challenge alive
	for i := 0; i < 4; i++ {
		replies, err := svc.SubmitOtp(ctx, testPhone, "000000")
		require.NoError(t, err)
		assert.Equal(t, msgOtpMismatch, replies[0].Body)
	}
	assert.Equal(t, domain.StepAwaitingOtp, store.get(testPhone).Session.Step)

	// fifth guess cancels the challenge
	replies, err := svc.SubmitOtp(ctx, testPhone, "000000")
	require.NoError(t, err)
	assert.Equal(t, msgOtpExhausted, replies[0].Body)

	user := store.get(testPhone)
	assert.Equal(t, domain.StepIdle, user.Session.Step)
	assert.Empty(t, user.Session.PendingCommand)
}

func TestOtpExpiry(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	base := time.Now()
	svc.challenge.now = func() time.Time { return base }
	svc.now = func() time.Time { return base }

	_, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	otp := store.get(testPhone).Session.Otp

	// past the TTL even the correct code is dead
	svc.now = func() time.Time { return base.Add(6 * time.Minute) }
	replies, err := svc.SubmitOtp(ctx, testPhone, otp)
	require.NoError(t, err)
	assert.Equal(t, msgOtpExpired, replies[0].Body)

	user := store.get(testPhone)
	assert.Equal(t, domain.StepIdle, user.Session.Step)
	assert.Empty(t, user.Session.PendingCommand)
}

func TestOtpExpiryAtPinStage(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	base := time.Now()
	svc.challenge.now = func() time.Time { return base }
	svc.now = func() time.Time { return base }

	_, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	otp := store.get(testPhone).Session.Otp

	_, err = svc.SubmitOtp(ctx, testPhone, otp)
	require.NoError(t, err)

	// a correct PIN after the OTP died still cancels the challenge
	svc.now = func() time.Time { return base.Add(6 * time.Minute) }
	pending, replies, err := svc.SubmitPin(ctx, testPhone, "1234")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, msgOtpExpired, replies[0].Body)
	assert.Equal(t, domain.StepIdle, store.get(testPhone).Session.Step)
}

func TestPinLockout(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	_, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	otp := store.get(testPhone).Session.Otp
	_, err = svc.SubmitOtp(ctx, testPhone, otp)
	require.NoError(t, err)

	// two wrong PINs: warnings with remaining attempts
	pending, replies, err := svc.SubmitPin(ctx, testPhone, "0000")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Contains(t, replies[0].Body, "2 attempt(s)")

	_, replies, err = svc.SubmitPin(ctx, testPhone, "0000")
	require.NoError(t, err)
	assert.Contains(t, replies[0].Body, "1 attempt(s)")

	// third wrong PIN locks the account
	_, replies, err = svc.SubmitPin(ctx, testPhone, "0000")
	require.NoError(t, err)
	assert.Equal(t, msgLocked, replies[0].Body)

	user := store.get(testPhone)
	assert.Equal(t, domain.StepLocked, user.Session.Step)
	assert.Empty(t, user.Session.PendingCommand)

	// locked users cannot start or answer challenges
	replies, err = svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	assert.Equal(t, msgLocked, replies[0].Body)

	pending, replies, err = svc.SubmitPin(ctx, testPhone, "1234")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, msgLocked, replies[0].Body)

	// RESET is the only exit
	replies, err = svc.Reset(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, msgReset, replies[0].Body)

	user = store.get(testPhone)
	assert.Equal(t, domain.StepIdle, user.Session.Step)
	assert.Equal(t, 0, user.Session.FailedAttempts)
	assert.True(t, user.HasPin(), "reset clears the session, not the PIN")
}

func TestSetPinDeniedMidChallenge(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	_, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)

	replies, err := svc.SetPin(ctx, testPhone, "9999")
	require.NoError(t, err)
	assert.Equal(t, msgPinChangeDenied, replies[0].Body)
	assert.Equal(t, domain.StepAwaitingOtp, store.get(testPhone).Session.Step)
}

func TestEntriesWithNothingPending(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	replies, err := svc.SubmitOtp(ctx, testPhone, "123456")
	require.NoError(t, err)
	assert.Equal(t, msgNothingPending, replies[0].Body)

	pending, replies, err := svc.SubmitPin(ctx, testPhone, "1234")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, msgNothingPending, replies[0].Body)
}

func TestInconsistentSessionIsRepaired(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	// corrupt the session: challenge step with no pending command
	err := store.Update(ctx, testPhone, func(u *models.User) error {
		u.Session.Step = domain.StepAwaitingOtp
		u.Session.PendingCommand = ""
		return nil
	})
	require.NoError(t, err)

	replies, err := svc.SubmitOtp(ctx, testPhone, "123456")
	require.NoError(t, err)
	assert.Equal(t, msgNothingPending, replies[0].Body)
	assert.Equal(t, domain.StepIdle, store.get(testPhone).Session.Step)
}

func TestReissueInvalidatesPreviousOtp(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	_, err := svc.BeginChallenge(ctx, testPhone, payCommand())
	require.NoError(t, err)
	firstOtp := store.get(testPhone).Session.Otp

	// a second value command replaces the challenge wholesale
	sellCmd := &domain.ParsedCommand{Type: domain.CmdSell, Amount: decimal.NewFromInt(10), Currency: "PYUSD"}
	_, err = svc.BeginChallenge(ctx, testPhone, sellCmd)
	require.NoError(t, err)

	user := store.get(testPhone)
	if user.Session.Otp == firstOtp {
		t.Skip("randomly generated identical codes, cannot distinguish")
	}

	replies, err := svc.SubmitOtp(ctx, testPhone, firstOtp)
	require.NoError(t, err)
	assert.Equal(t, msgOtpMismatch, replies[0].Body)

	replies, err = svc.SubmitOtp(ctx, testPhone, user.Session.Otp)
	require.NoError(t, err)
	assert.Equal(t, msgPinPrompt, replies[0].Body)

	pending, _, err := svc.SubmitPin(ctx, testPhone, "1234")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, domain.CmdSell, pending.Type, "the newer command is the pending one")
}

func TestOtpPromptNeverLeaksPin(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestSession(store)
	ctx := context.Background()
	setupUserWithPin(t, store, svc, "1234")

	cmd := payCommand()
	cmd.Pin = "1234"
	cmd.Otp = "999999"
	_, err := svc.BeginChallenge(ctx, testPhone, cmd)
	require.NoError(t, err)

	// secrets never reach the stored pending command
	stored := store.get(testPhone).Session.PendingCommand
	assert.False(t, strings.Contains(stored, "1234") || strings.Contains(stored, "999999"),
		"stored pending command must not carry PIN or OTP: %s", stored)
}
