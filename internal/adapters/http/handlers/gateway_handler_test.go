package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"textpesa/internal/core/domain"
	"textpesa/internal/core/services"
	"textpesa/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayApp() (*fiber.App, *services.OutboxService) {
	outbox := services.NewOutboxService(3, 5*time.Minute, time.Hour, logging.Nop())
	handler := NewGatewayHandler(outbox)

	app := fiber.New()
	app.Get("/gateway/outgoing", handler.Outgoing)
	app.Post("/gateway/sent", handler.Sent)
	app.Post("/gateway/failed", handler.Failed)
	app.Get("/gateway/stats", handler.Stats)
	return app, outbox
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestGatewayOutgoing(t *testing.T) {
	app, outbox := newGatewayApp()

	outbox.AddMessage("+911", "low", domain.PriorityLow)
	highID := outbox.AddMessage("+912", "high", domain.PriorityHigh)

	req := httptest.NewRequest(http.MethodGet, "/gateway/outgoing?limit=1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])

	messages := data["messages"].([]interface{})
	first := messages[0].(map[string]interface{})
	assert.Equal(t, highID, first["id"])
	assert.Equal(t, "high", first["body"])
}

func TestGatewaySentAck(t *testing.T) {
	app, outbox := newGatewayApp()
	id := outbox.AddMessage("+911", "msg", domain.PriorityNormal)

	payload, _ := json.Marshal(AckRequest{ID: id})
	req := httptest.NewRequest(http.MethodPost, "/gateway/sent", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, outbox.GetStats().Sent)

	// double ack: settled message is reported as not found
	req = httptest.NewRequest(http.MethodPost, "/gateway/sent", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewaySentAckValidation(t *testing.T) {
	app, _ := newGatewayApp()

	payload, _ := json.Marshal(AckRequest{})
	req := httptest.NewRequest(http.MethodPost, "/gateway/sent", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGatewayFailedKeepsRetrying(t *testing.T) {
	app, outbox := newGatewayApp()
	id := outbox.AddMessage("+911", "msg", domain.PriorityNormal)

	payload, _ := json.Marshal(AckRequest{ID: id, Error: "timeout"})
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/gateway/failed", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 1, outbox.GetStats().Pending, "message still pending before the attempt ceiling")

	req := httptest.NewRequest(http.MethodPost, "/gateway/failed", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, outbox.GetStats().Failed)
}

func TestGatewayStats(t *testing.T) {
	app, outbox := newGatewayApp()
	outbox.AddMessage("+911", "a", domain.PriorityNormal)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/gateway/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["pending"])
	assert.Equal(t, float64(1), data["total"])
}
