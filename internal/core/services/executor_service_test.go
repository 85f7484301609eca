package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"textpesa/internal/core/domain"
	"textpesa/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorFixture struct {
	executor *ExecutorService
	store    *fakeUserStore
	outbox   *OutboxService
}

func newExecutorFixture() *executorFixture {
	store := newFakeUserStore()
	outbox := NewOutboxService(3, 5*time.Minute, time.Hour, logging.Nop())
	challenge := NewChallengeService(5*time.Minute, allowAllLimiter{})
	sessions := NewSessionService(store, challenge, 3, 5, logging.Nop())
	parser := NewParser("+91")
	executor := NewExecutorService(parser, store, sessions, outbox, logging.Nop())
	return &executorFixture{executor: executor, store: store, outbox: outbox}
}

// drain empties the queue and returns what was pending.
func (f *executorFixture) drain() []domain.QueuedMessage {
	messages := f.outbox.GetPendingMessages(0)
	for _, msg := range messages {
		f.outbox.MarkAsSent(msg.ID)
	}
	return messages
}

func TestExecutorEndToEndPayFlow(t *testing.T) {
	f := newExecutorFixture()
	ctx := context.Background()

	invocations := 0
	f.executor.Register(domain.CmdPay, HandlerFunc(
		func(_ context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
			invocations++
			assert.Equal(t, testPhone, phoneNumber)
			assert.Equal(t, "+911111111111", cmd.RecipientPhone)
			return "Sent 500.00 INR", nil
		}))

	// 1. PIN setup
	f.executor.HandleMessage(ctx, testPhone, "SET PIN 1234")
	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, msgPinSet, messages[0].Body)

	// 2. value command triggers exactly one OTP SMS, no execution
	f.executor.HandleMessage(ctx, testPhone, "PAY 500 INR to +911111111111")
	messages = f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, domain.PriorityHigh, messages[0].Priority)
	assert.Equal(t, 0, invocations)

	otp := f.store.get(testPhone).Session.Otp
	require.Len(t, otp, 6)

	// 3. OTP answer yields exactly one PIN prompt
	f.executor.HandleMessage(ctx, testPhone, otp)
	messages = f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, msgPinPrompt, messages[0].Body)
	assert.Equal(t, 0, invocations)

	// 4. PIN answer executes the pending command exactly once
	f.executor.HandleMessage(ctx, testPhone, "1234")
	messages = f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, "Sent 500.00 INR", messages[0].Body)
	assert.Equal(t, 1, invocations)

	assert.Equal(t, domain.StepIdle, f.store.get(testPhone).Session.Step)
}

func TestExecutorUnrecognizedMessage(t *testing.T) {
	f := newExecutorFixture()

	f.executor.HandleMessage(context.Background(), testPhone, "xyzzy")

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, unrecognizedHint, messages[0].Body)
	assert.Equal(t, testPhone, messages[0].To)
}

func TestExecutorHelp(t *testing.T) {
	f := newExecutorFixture()

	f.executor.HandleMessage(context.Background(), testPhone, "HELP")

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, helpText, messages[0].Body)
	assert.Equal(t, domain.PriorityLow, messages[0].Priority)
}

func TestExecutorDispatchesReadCommandsWithoutChallenge(t *testing.T) {
	f := newExecutorFixture()

	f.executor.Register(domain.CmdBalance, HandlerFunc(
		func(context.Context, string, *domain.ParsedCommand) (string, error) {
			return "Your balance: 100.00 INR", nil
		}))

	// works even before PIN setup; BALANCE moves no value
	f.executor.HandleMessage(context.Background(), testPhone, "BALANCE")

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, "Your balance: 100.00 INR", messages[0].Body)
}

func TestExecutorHandlerError(t *testing.T) {
	f := newExecutorFixture()

	f.executor.Register(domain.CmdBalance, HandlerFunc(
		func(context.Context, string, *domain.ParsedCommand) (string, error) {
			return "", errors.New("db down")
		}))

	f.executor.HandleMessage(context.Background(), testPhone, "BALANCE")

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Body, "could not be completed")
}

func TestExecutorHandlerPanicIsContained(t *testing.T) {
	f := newExecutorFixture()

	f.executor.Register(domain.CmdBalance, HandlerFunc(
		func(context.Context, string, *domain.ParsedCommand) (string, error) {
			panic("boom")
		}))

	assert.NotPanics(t, func() {
		f.executor.HandleMessage(context.Background(), testPhone, "BALANCE")
	})

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Body, "could not be completed")
}

func TestExecutorUnregisteredCommand(t *testing.T) {
	f := newExecutorFixture()

	f.executor.HandleMessage(context.Background(), testPhone, "STATUS")

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, msgNotAvailable, messages[0].Body)
}

func TestExecutorNormalizesSender(t *testing.T) {
	f := newExecutorFixture()

	f.executor.HandleMessage(context.Background(), "09876543210", "HELP")

	messages := f.drain()
	require.Len(t, messages, 1)
	assert.Equal(t, testPhone, messages[0].To)
	assert.NotNil(t, f.store.get(testPhone))
}
