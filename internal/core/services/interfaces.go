package services

import (
	"context"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/core/domain"
)

// UserStore is the slice of user persistence the session machinery needs.
// Update must be an atomic read-modify-write keyed by phone number — two SMS
// from the same number arriving together must serialize, not interleave.
type UserStore interface {
	FindOrCreate(ctx context.Context, phone string) (*models.User, error)
	Update(ctx context.Context, phone string, fn func(*models.User) error) error
}

// Handler executes one fully-authorized command variant and returns the reply
// text for the initiating user. Handlers may enqueue additional messages to
// third parties themselves; the returned string is always addressed to the
// sender.
type Handler interface {
	Handle(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	return f(ctx, phoneNumber, cmd)
}
