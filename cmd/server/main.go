package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"textpesa/internal/adapters/cache"
	"textpesa/internal/adapters/events"
	"textpesa/internal/adapters/http/middleware"
	"textpesa/internal/adapters/http/routes"
	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/adapters/persistence/repositories"
	"textpesa/internal/config"
	"textpesa/internal/core/services"
	"textpesa/internal/logging"

	"github.com/gofiber/fiber/v2"

	_ "textpesa/docs" // Swagger docs
)

// @title TextPesa SMS Wallet API
// @version 1.0
// @description SMS command & authentication pipeline for the TextPesa wallet

// @contact.name API Support
// @contact.email support@textpesa.io

// @host api.textpesa.io
// @BasePath /api/v1
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Structured logger
	logger, err := logging.New(cfg.IsDev())
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// OTP issuance limiter (Redis-backed when configured)
	limiter := cache.NewLimiter(cfg.Redis.Addr, cfg.Redis.Password)

	// Wallet event stream (no-op when Kafka is not configured)
	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer publisher.Close() //nolint:errcheck

	// Outbound message queue
	outbox := services.NewOutboxService(
		cfg.Gateway.MaxAttempts,
		cfg.Gateway.SentRetention,
		cfg.Gateway.FailedRetention,
		logger,
	)

	// Background maintenance: outbox GC + stale session sweep
	sweeper := services.NewSweeperService(outbox, repositories.NewUserRepository(db), logger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("❌ Failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "TextPesa API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg, outbox, limiter, publisher, logger)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
