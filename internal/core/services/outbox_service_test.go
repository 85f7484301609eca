package services

import (
	"testing"
	"time"

	"textpesa/internal/core/domain"
	"textpesa/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox() *OutboxService {
	return NewOutboxService(3, 5*time.Minute, time.Hour, logging.Nop())
}

func TestOutboxPriorityOrdering(t *testing.T) {
	outbox := newTestOutbox()

	lowID := outbox.AddMessage("+911", "low", domain.PriorityLow)
	normalID := outbox.AddMessage("+912", "normal", domain.PriorityNormal)
	highID := outbox.AddMessage("+913", "high", domain.PriorityHigh)

	messages := outbox.GetPendingMessages(10)
	require.Len(t, messages, 3)
	assert.Equal(t, highID, messages[0].ID)
	assert.Equal(t, normalID, messages[1].ID)
	assert.Equal(t, lowID, messages[2].ID)
}

func TestOutboxFIFOWithinTier(t *testing.T) {
	outbox := newTestOutbox()

	first := outbox.AddMessage("+911", "first", domain.PriorityNormal)
	second := outbox.AddMessage("+912", "second", domain.PriorityNormal)
	third := outbox.AddMessage("+913", "third", domain.PriorityNormal)

	messages := outbox.GetPendingMessages(10)
	require.Len(t, messages, 3)
	assert.Equal(t, []string{first, second, third},
		[]string{messages[0].ID, messages[1].ID, messages[2].ID})
}

func TestOutboxLimit(t *testing.T) {
	outbox := newTestOutbox()

	for i := 0; i < 5; i++ {
		outbox.AddMessage("+911", "msg", domain.PriorityNormal)
	}

	assert.Len(t, outbox.GetPendingMessages(2), 2)
	assert.Len(t, outbox.GetPendingMessages(0), 5)
}

func TestOutboxMarkAsSent(t *testing.T) {
	outbox := newTestOutbox()
	id := outbox.AddMessage("+911", "msg", domain.PriorityNormal)

	assert.True(t, outbox.MarkAsSent(id))
	assert.Empty(t, outbox.GetPendingMessages(10))

	// double ack is a no-op
	assert.False(t, outbox.MarkAsSent(id))
	assert.False(t, outbox.MarkAsSent("no-such-id"))

	stats := outbox.GetStats()
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 0, stats.Pending)
}

func TestOutboxRetryCeiling(t *testing.T) {
	outbox := newTestOutbox()
	id := outbox.AddMessage("+911", "msg", domain.PriorityNormal)

	// first two failures keep the message pending for re-delivery
	assert.True(t, outbox.MarkAsFailed(id, "timeout"))
	require.Len(t, outbox.GetPendingMessages(10), 1)
	assert.Equal(t, 1, outbox.GetPendingMessages(10)[0].Attempts)

	assert.True(t, outbox.MarkAsFailed(id, "timeout"))
	require.Len(t, outbox.GetPendingMessages(10), 1)

	// third failure is terminal
	assert.True(t, outbox.MarkAsFailed(id, "unreachable"))
	assert.Empty(t, outbox.GetPendingMessages(10))

	stats := outbox.GetStats()
	assert.Equal(t, 1, stats.Failed)

	// a settled message cannot fail or succeed again
	assert.False(t, outbox.MarkAsFailed(id, "late"))
	assert.False(t, outbox.MarkAsSent(id))
}

func TestOutboxStats(t *testing.T) {
	outbox := newTestOutbox()

	a := outbox.AddMessage("+911", "a", domain.PriorityNormal)
	outbox.AddMessage("+912", "b", domain.PriorityNormal)
	c := outbox.AddMessage("+913", "c", domain.PriorityNormal)

	outbox.MarkAsSent(a)
	for i := 0; i < 3; i++ {
		outbox.MarkAsFailed(c, "err")
	}

	stats := outbox.GetStats()
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Total)
}

func TestOutboxPurge(t *testing.T) {
	outbox := newTestOutbox()
	base := time.Now()
	outbox.now = func() time.Time { return base }

	sent := outbox.AddMessage("+911", "sent", domain.PriorityNormal)
	failed := outbox.AddMessage("+912", "failed", domain.PriorityNormal)
	outbox.AddMessage("+913", "pending", domain.PriorityNormal)

	outbox.MarkAsSent(sent)
	for i := 0; i < 3; i++ {
		outbox.MarkAsFailed(failed, "err")
	}

	// inside both retention windows: nothing to purge
	assert.Equal(t, 0, outbox.Purge())

	// past sent retention, inside failed retention
	outbox.now = func() time.Time { return base.Add(10 * time.Minute) }
	assert.Equal(t, 1, outbox.Purge())
	assert.Equal(t, 2, outbox.GetStats().Total)

	// past failed retention too; the pending message always survives
	outbox.now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.Equal(t, 1, outbox.Purge())

	stats := outbox.GetStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pending)
}
