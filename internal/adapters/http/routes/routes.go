package routes

import (
	"textpesa/internal/adapters/cache"
	"textpesa/internal/adapters/events"
	"textpesa/internal/adapters/http/handlers"
	"textpesa/internal/adapters/http/middleware"
	"textpesa/internal/adapters/persistence/repositories"
	"textpesa/internal/config"
	"textpesa/internal/core/domain"
	"textpesa/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers and registers all routes.
// The outbox, limiter and publisher are created by the caller because their
// lifecycles outlive the HTTP layer.
func Setup(
	app *fiber.App,
	db *gorm.DB,
	cfg *config.Config,
	outbox *services.OutboxService,
	limiter cache.Limiter,
	publisher events.Publisher,
	logger *zap.SugaredLogger,
) {
	// Repositories
	userRepo := repositories.NewUserRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	merchantRepo := repositories.NewMerchantRepository(db)
	clubRepo := repositories.NewClubRepository(db)

	// Core pipeline
	parser := services.NewParser(cfg.Wallet.DefaultCountryCode)
	challengeService := services.NewChallengeService(cfg.Wallet.OtpTTL, limiter)
	sessionService := services.NewSessionService(
		userRepo, challengeService,
		cfg.Wallet.PinMaxAttempts, cfg.Wallet.OtpMaxAttempts,
		logger,
	)
	executor := services.NewExecutorService(parser, userRepo, sessionService, outbox, logger)

	// Domain handlers
	paymentService := services.NewPaymentService(
		userRepo, txRepo, loanRepo, outbox, publisher, cfg.Wallet.PyusdInrRate, logger)
	merchantService := services.NewMerchantService(merchantRepo, txRepo, outbox, logger)
	clubService := services.NewClubService(clubRepo, userRepo, txRepo, outbox, publisher, logger)

	executor.Register(domain.CmdPay, services.HandlerFunc(paymentService.Pay))
	executor.Register(domain.CmdSell, services.HandlerFunc(paymentService.Sell))
	executor.Register(domain.CmdBalance, services.HandlerFunc(paymentService.Balance))
	executor.Register(domain.CmdStatus, services.HandlerFunc(paymentService.Status))
	executor.Register(domain.CmdAcceptLoan, services.HandlerFunc(paymentService.AcceptLoan))
	executor.Register(domain.CmdRetry, services.HandlerFunc(paymentService.Retry))
	executor.Register(domain.CmdMerchantRegister, services.HandlerFunc(merchantService.Register))
	executor.Register(domain.CmdMerchantRequestPayment, services.HandlerFunc(merchantService.RequestPayment))
	executor.Register(domain.CmdMerchantReport, services.HandlerFunc(merchantService.Report))
	executor.Register(domain.CmdClubCreate, services.HandlerFunc(clubService.Create))
	executor.Register(domain.CmdClubDeposit, services.HandlerFunc(clubService.Deposit))
	executor.Register(domain.CmdClubProposePayout, services.HandlerFunc(clubService.ProposePayout))
	executor.Register(domain.CmdClubVote, services.HandlerFunc(clubService.Vote))

	authService := services.NewAuthService(cfg)

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg)
	webhookHandler := handlers.NewWebhookHandler(executor)
	gatewayHandler := handlers.NewGatewayHandler(outbox)
	adminHandler := handlers.NewAdminHandler(authService, outbox, userRepo)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")

	// Inbound SMS webhook (gateway-authenticated)
	webhook := apiV1.Group("/webhook", middleware.GatewayAuth(cfg))
	webhook.Post("/sms", webhookHandler.ReceiveSMS)

	// Outbound queue polling (gateway-authenticated)
	gateway := apiV1.Group("/gateway", middleware.GatewayAuth(cfg))
	gateway.Get("/outgoing", gatewayHandler.Outgoing)
	gateway.Post("/sent", gatewayHandler.Sent)
	gateway.Post("/failed", gatewayHandler.Failed)
	gateway.Get("/stats", gatewayHandler.Stats)

	// Ops console
	admin := apiV1.Group("/admin")
	admin.Post("/login", middleware.AuthRateLimiter(), adminHandler.Login)
	admin.Get("/overview", middleware.AuthMiddleware(cfg), adminHandler.Overview)
	admin.Get("/users", middleware.AuthMiddleware(cfg), adminHandler.Users)
}
