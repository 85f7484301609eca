package handlers

import (
	"strconv"

	"textpesa/internal/core/services"
	"textpesa/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// GatewayHandler serves the delivery gateway's polling protocol
type GatewayHandler struct {
	outbox *services.OutboxService
}

// NewGatewayHandler creates a new gateway handler
func NewGatewayHandler(outbox *services.OutboxService) *GatewayHandler {
	return &GatewayHandler{outbox: outbox}
}

// AckRequest is a delivery outcome report from the gateway
type AckRequest struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// Outgoing returns messages awaiting delivery
// @Summary Poll outgoing messages
// @Description Returns pending messages, high priority first, oldest first within a tier
// @Tags Gateway
// @Produce json
// @Param limit query int false "Max messages to return (default 10)"
// @Success 200 {object} response.Response
// @Security ApiKeyAuth
// @Router /gateway/outgoing [get]
func (h *GatewayHandler) Outgoing(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	messages := h.outbox.GetPendingMessages(limit)
	return response.Success(c, "Pending messages", fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// Sent acknowledges a successful delivery
// @Summary Acknowledge delivery
// @Tags Gateway
// @Accept json
// @Produce json
// @Param body body AckRequest true "Message id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Security ApiKeyAuth
// @Router /gateway/sent [post]
func (h *GatewayHandler) Sent(c *fiber.Ctx) error {
	var req AckRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ID == "" {
		return response.BadRequest(c, "id is required")
	}

	if !h.outbox.MarkAsSent(req.ID) {
		return response.NotFound(c, "Unknown or already settled message")
	}
	return response.Success(c, "Marked as sent", nil)
}

// Failed reports a delivery failure
// @Summary Report delivery failure
// @Description The message stays pending for retry until its attempt ceiling is reached
// @Tags Gateway
// @Accept json
// @Produce json
// @Param body body AckRequest true "Message id and error"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Security ApiKeyAuth
// @Router /gateway/failed [post]
func (h *GatewayHandler) Failed(c *fiber.Ctx) error {
	var req AckRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ID == "" {
		return response.BadRequest(c, "id is required")
	}

	if !h.outbox.MarkAsFailed(req.ID, req.Error) {
		return response.NotFound(c, "Unknown or already settled message")
	}
	return response.Success(c, "Failure recorded", nil)
}

// Stats returns queue statistics
// @Summary Queue statistics
// @Tags Gateway
// @Produce json
// @Success 200 {object} response.Response
// @Security ApiKeyAuth
// @Router /gateway/stats [get]
func (h *GatewayHandler) Stats(c *fiber.Ctx) error {
	return response.Success(c, "Queue statistics", h.outbox.GetStats())
}
