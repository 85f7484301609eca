package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types emitted on the wallet stream
const (
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	SellCompleted    = "sell.completed"
	LoanAccepted     = "loan.accepted"
	ClubPayout       = "club.payout.executed"
)

// Event is a wallet activity record published for downstream consumers
// (fraud scoring, analytics). Keyed by the initiating phone number so one
// user's events stay ordered within a partition.
type Event struct {
	Type     string    `json:"type"`
	Phone    string    `json:"phone"`
	Ref      string    `json:"ref,omitempty"`
	Amount   string    `json:"amount,omitempty"`
	Currency string    `json:"currency,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher publishes wallet events
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// NewPublisher returns a Kafka publisher when brokers are configured,
// otherwise a no-op.
func NewPublisher(brokers []string, topic string, logger *zap.SugaredLogger) Publisher {
	if len(brokers) == 0 {
		return nopPublisher{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Infow("kafka event publisher enabled", "topic", topic)
	return &kafkaPublisher{writer: writer, logger: logger}
}

type kafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.SugaredLogger
}

// Publish writes the event to the wallet topic. Failures are logged, never
// surfaced: event publishing is best-effort and must not fail an SMS flow.
func (p *kafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warnw("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Phone),
		Value: data,
	})
	if err != nil {
		p.logger.Warnw("failed to publish event", "type", event.Type, "error", err)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}
func (nopPublisher) Close() error                   { return nil }
