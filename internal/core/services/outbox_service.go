package services

import (
	"sort"
	"sync"
	"time"

	"textpesa/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxService buffers reply messages for the external delivery gateway.
// The gateway polls GetPendingMessages and reports outcomes through
// MarkAsSent / MarkAsFailed; nothing else touches a queued message.
//
// Every public method takes the queue-wide lock and performs its full
// read-modify-write under it — priority ordering needs a consistent view
// across all pending entries, so per-message locking would be wrong.
type OutboxService struct {
	mu      sync.Mutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
	seq     uint64

	maxAttempts     int
	sentRetention   time.Duration
	failedRetention time.Duration
	now             func() time.Time
	logger          *zap.SugaredLogger
}

// outboxEntry wraps a message with its insertion sequence for stable FIFO
// ordering within a priority tier.
type outboxEntry struct {
	msg        domain.QueuedMessage
	seq        uint64
	terminalAt time.Time
}

// NewOutboxService creates the outbound message queue.
func NewOutboxService(maxAttempts int, sentRetention, failedRetention time.Duration, logger *zap.SugaredLogger) *OutboxService {
	return &OutboxService{
		byID:            make(map[string]*outboxEntry),
		maxAttempts:     maxAttempts,
		sentRetention:   sentRetention,
		failedRetention: failedRetention,
		now:             time.Now,
		logger:          logger,
	}
}

// AddMessage enqueues an outbound SMS and returns its id.
func (s *OutboxService) AddMessage(to, body string, priority domain.Priority) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry := &outboxEntry{
		msg: domain.QueuedMessage{
			ID:          uuid.NewString(),
			To:          to,
			Body:        body,
			Priority:    priority,
			Status:      domain.StatusPending,
			CreatedAt:   s.now(),
			Attempts:    0,
			MaxAttempts: s.maxAttempts,
		},
		seq: s.seq,
	}

	s.entries = append(s.entries, entry)
	s.byID[entry.msg.ID] = entry

	s.logger.Debugw("message queued", "id", entry.msg.ID, "to", to, "priority", priority)
	return entry.msg.ID
}

// GetPendingMessages returns up to limit pending messages, high priority
// first, oldest first within a tier. Returned values are copies; acking goes
// through MarkAsSent / MarkAsFailed.
func (s *OutboxService) GetPendingMessages(limit int) []domain.QueuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*outboxEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.msg.Status == domain.StatusPending {
			pending = append(pending, entry)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		pi, pj := pending[i].msg.Priority.Rank(), pending[j].msg.Priority.Rank()
		if pi != pj {
			return pi < pj
		}
		return pending[i].seq < pending[j].seq
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]domain.QueuedMessage, len(pending))
	for i, entry := range pending {
		out[i] = entry.msg
	}
	return out
}

// MarkAsSent records a successful delivery. Returns false for unknown ids
// and for messages already in a terminal state (double-ack is a no-op).
func (s *OutboxService) MarkAsSent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[id]
	if !ok || entry.msg.Status != domain.StatusPending {
		s.logger.Warnw("sent ack for unknown or settled message", "id", id)
		return false
	}

	now := s.now()
	entry.msg.Status = domain.StatusSent
	entry.msg.SentAt = &now
	entry.terminalAt = now
	return true
}

// MarkAsFailed records a delivery failure. The message stays pending (and
// will be re-offered on the next poll) until attempts reach the ceiling,
// at which point it becomes terminally failed. Returns false for unknown
// ids and settled messages.
func (s *OutboxService) MarkAsFailed(id, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[id]
	if !ok || entry.msg.Status != domain.StatusPending {
		s.logger.Warnw("failure ack for unknown or settled message", "id", id)
		return false
	}

	entry.msg.Attempts++
	entry.msg.Error = errMsg
	if entry.msg.Attempts >= entry.msg.MaxAttempts {
		entry.msg.Status = domain.StatusFailed
		entry.terminalAt = s.now()
		s.logger.Warnw("message exhausted retries", "id", id, "to", entry.msg.To, "error", errMsg)
	}
	return true
}

// GetStats returns a point-in-time snapshot of the queue.
func (s *OutboxService) GetStats() domain.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.QueueStats{Total: len(s.entries)}
	for _, entry := range s.entries {
		switch entry.msg.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusSent:
			stats.Sent++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// Purge drops terminal messages past their retention window (sent messages
// briefly, failed ones longer for diagnosis) and returns how many were
// removed. Called on a schedule; bounds memory use.
func (s *OutboxService) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.entries[:0]
	removed := 0
	for _, entry := range s.entries {
		expired := false
		switch entry.msg.Status {
		case domain.StatusSent:
			expired = now.Sub(entry.terminalAt) >= s.sentRetention
		case domain.StatusFailed:
			expired = now.Sub(entry.terminalAt) >= s.failedRetention
		}
		if expired {
			delete(s.byID, entry.msg.ID)
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept

	if removed > 0 {
		s.logger.Debugw("purged settled messages", "count", removed)
	}
	return removed
}
