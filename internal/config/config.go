package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Wallet   WalletConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Admin    AdminConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration for the ops console
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// WalletConfig holds the SMS wallet behavior knobs
type WalletConfig struct {
	OtpTTL             time.Duration
	PinMaxAttempts     int
	OtpMaxAttempts     int
	DefaultCountryCode string
	PyusdInrRate       decimal.Decimal
}

// GatewayConfig holds delivery-gateway settings
type GatewayConfig struct {
	APIKey          string
	SentRetention   time.Duration
	FailedRetention time.Duration
	MaxAttempts     int
}

// RedisConfig holds the optional rate-limiter store settings
type RedisConfig struct {
	Addr     string
	Password string
}

// KafkaConfig holds the optional wallet event stream settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AdminConfig holds the ops console credentials
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional in production; env vars win either way
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	rate, err := decimal.NewFromString(getEnv("PYUSD_INR_RATE", "83"))
	if err != nil {
		return nil, fmt.Errorf("invalid PYUSD_INR_RATE: %w", err)
	}

	cfg := &Config{
		AppMode: appMode,
		Port:    getEnv("PORT", "3000"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASS", ""),
			DBName:   getEnv("DB_NAME", "textpesa"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "default_secret"),
			AccessTokenMins: getEnvInt("ACCESS_TOKEN_MINUTES", 15),
		},
		Wallet: WalletConfig{
			OtpTTL:             time.Duration(getEnvInt("OTP_TTL_SECONDS", 300)) * time.Second,
			PinMaxAttempts:     getEnvInt("PIN_MAX_ATTEMPTS", 3),
			OtpMaxAttempts:     getEnvInt("OTP_MAX_ATTEMPTS", 5),
			DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "+91"),
			PyusdInrRate:       rate,
		},
		Gateway: GatewayConfig{
			APIKey:          getEnv("GATEWAY_API_KEY", ""),
			SentRetention:   time.Duration(getEnvInt("SENT_RETENTION_SECONDS", 300)) * time.Second,
			FailedRetention: time.Duration(getEnvInt("FAILED_RETENTION_SECONDS", 3600)) * time.Second,
			MaxAttempts:     getEnvInt("MESSAGE_MAX_ATTEMPTS", 3),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "wallet.events"),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return cfg, nil
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" && c.IsDev() {
		return "*"
	}
	return origins
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
