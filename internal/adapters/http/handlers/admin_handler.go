package handlers

import (
	"errors"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/adapters/persistence/repositories"
	"textpesa/internal/core/domain"
	"textpesa/internal/core/services"
	"textpesa/internal/pkg/pagination"
	"textpesa/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the ops console endpoints
type AdminHandler struct {
	authService *services.AuthService
	outbox      *services.OutboxService
	users       repositories.UserRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *services.AuthService, outbox *services.OutboxService, users repositories.UserRepository) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		outbox:      outbox,
		users:       users,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles operator login
// @Summary Operator login
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /admin/login [post]
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return response.BadRequest(c, "Username and password are required")
	}

	result, err := h.authService.Login(&services.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return response.Unauthorized(c, "Invalid username or password")
		}
		return response.InternalServerError(c, "Login failed")
	}

	return response.Success(c, "Login successful", result)
}

// Overview returns the operational dashboard numbers
// @Summary Operations overview
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /admin/overview [get]
func (h *AdminHandler) Overview(c *fiber.Ctx) error {
	ctx := c.Context()

	total, err := h.users.Count(ctx)
	if err != nil {
		return response.InternalServerError(c, "Failed to load overview")
	}

	steps := map[string]int64{}
	for _, step := range []domain.SessionStep{
		domain.StepAwaitingPinSetup,
		domain.StepIdle,
		domain.StepAwaitingOtp,
		domain.StepAwaitingPin,
		domain.StepLocked,
	} {
		count, err := h.users.CountByStep(ctx, step)
		if err != nil {
			return response.InternalServerError(c, "Failed to load overview")
		}
		steps[string(step)] = count
	}

	return response.Success(c, "Overview", fiber.Map{
		"users":    total,
		"sessions": steps,
		"queue":    h.outbox.GetStats(),
	})
}

// Users lists wallet users
// @Summary List users
// @Tags Admin
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	users, total, err := h.users.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	items := make([]*models.UserResponse, len(users))
	for i, user := range users {
		items[i] = user.ToResponse()
	}

	return response.Success(c, "Users", fiber.Map{
		"items": items,
		"meta":  pagination.GetMeta(params, total),
	})
}
