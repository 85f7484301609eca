package domain

import "time"

// Priority orders outbound messages within the queue
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the scan order of a priority tier (lower scans first).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// MessageStatus is the delivery state of a queued message
type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// QueuedMessage is an outbound SMS buffered for the delivery gateway.
// Instances are owned by the queue; the gateway only reads them and reports
// outcomes through the ack endpoints.
type QueuedMessage struct {
	ID          string        `json:"id"`
	To          string        `json:"to"`
	Body        string        `json:"body"`
	Priority    Priority      `json:"priority"`
	Status      MessageStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	SentAt      *time.Time    `json:"sent_at,omitempty"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Error       string        `json:"error,omitempty"`
}

// QueueStats is a point-in-time snapshot of the outbound queue
type QueueStats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}
