package handlers

import (
	"textpesa/internal/core/services"
	"textpesa/internal/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives inbound SMS from the delivery gateway
type WebhookHandler struct {
	executor *services.ExecutorService
	validate *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(executor *services.ExecutorService) *WebhookHandler {
	return &WebhookHandler{
		executor: executor,
		validate: validator.New(),
	}
}

// InboundSMSRequest is the gateway's inbound message payload
type InboundSMSRequest struct {
	From string `json:"from" validate:"required,min=7,max=20"`
	Body string `json:"body" validate:"required,max=480"`
}

// ReceiveSMS handles an inbound SMS
// @Summary Receive inbound SMS
// @Description Accepts one SMS from the gateway and runs it through the command pipeline. Replies are queued, never returned inline.
// @Tags Webhook
// @Accept json
// @Produce json
// @Param body body InboundSMSRequest true "Inbound message"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /webhook/sms [post]
func (h *WebhookHandler) ReceiveSMS(c *fiber.Ctx) error {
	var req InboundSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return response.BadRequest(c, "from and body are required")
	}

	h.executor.HandleMessage(c.Context(), req.From, req.Body)

	return c.Status(fiber.StatusAccepted).JSON(response.Response{
		Success: true,
		Message: "Message accepted",
	})
}
