package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/core/domain"
	"textpesa/internal/core/services"
	"textpesa/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUserStore is a minimal in-memory services.UserStore for webhook tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUserStore) FindOrCreate(_ context.Context, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[phone]; ok {
		return user, nil
	}
	user := &models.User{
		PhoneNumber: phone,
		Session:     domain.SessionState{Step: domain.StepAwaitingPinSetup},
	}
	m.users[phone] = user
	return user, nil
}

func (m *memUserStore) Update(_ context.Context, phone string, fn func(*models.User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[phone]
	if !ok {
		return fiber.ErrNotFound
	}
	return fn(user)
}

type noLimit struct{}

func (noLimit) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func newWebhookApp() (*fiber.App, *services.OutboxService) {
	store := &memUserStore{users: make(map[string]*models.User)}
	outbox := services.NewOutboxService(3, 5*time.Minute, time.Hour, logging.Nop())
	challenge := services.NewChallengeService(5*time.Minute, noLimit{})
	sessions := services.NewSessionService(store, challenge, 3, 5, logging.Nop())
	parser := services.NewParser("+91")
	executor := services.NewExecutorService(parser, store, sessions, outbox, logging.Nop())

	app := fiber.New()
	app.Post("/webhook/sms", NewWebhookHandler(executor).ReceiveSMS)
	return app, outbox
}

func postSMS(t *testing.T, app *fiber.App, from, body string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(InboundSMSRequest{From: from, Body: body})
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestWebhookAcceptsAndQueuesReply(t *testing.T) {
	app, outbox := newWebhookApp()

	resp := postSMS(t, app, "+919876543210", "HELP")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	messages := outbox.GetPendingMessages(10)
	require.Len(t, messages, 1)
	assert.Equal(t, "+919876543210", messages[0].To)
	assert.Contains(t, messages[0].Body, "TextPesa commands")
}

func TestWebhookUnparseableCommandGetsHint(t *testing.T) {
	app, outbox := newWebhookApp()

	resp := postSMS(t, app, "+919876543210", "frobnicate 12")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	messages := outbox.GetPendingMessages(10)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Body, "HELP")
}

func TestWebhookValidation(t *testing.T) {
	app, _ := newWebhookApp()

	tests := []struct {
		name string
		from string
		body string
	}{
		{"missing from", "", "HELP"},
		{"missing body", "+919876543210", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postSMS(t, app, tt.from, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
