// Package config loads application configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Storage     StorageConfig
	Auth        AuthConfig
	Idempotency IdempotencyConfig
	Receiving   ReceivingConfig
	Purchasing  PurchasingConfig
	Worker      WorkerConfig
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Port string
	Env  string
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// IdempotencyConfig configures the X-Idempotency-Key store.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ReceivingConfig holds receipt transaction options.
type ReceivingConfig struct {
	MaxAttempts int
}

// PurchasingConfig controls purchase order numbering.
type PurchasingConfig struct {
	// NumberingStrategy is "strict" (gapless per committed reservation) or
	// "cached" (ranges reserved up front).
	NumberingStrategy string
	NumberingRange    int64
}

// WorkerConfig holds outbox relay and housekeeping options.
type WorkerConfig struct {
	OutboxBatchSize      int
	OutboxSchedule       string
	HousekeepingSchedule string
	PublishedRetention   time.Duration
	WebhookURL           string
	WebhookSecret        string
	WebhookTimeout       time.Duration
	MetricsAddr          string
}

// Development reports whether the server runs in development mode.
func (c *Config) Development() bool {
	return c.Server.Env == "development"
}

// Load reads environment variables (optionally from envFile) and validates
// the result. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("APP_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", ""),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			MaxConns:    int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns:    int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			JWTIssuer: getEnv("JWT_ISSUER", "stockflow"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: getEnvBool("IDEMPOTENCY_ENABLED", true),
			TTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Receiving: ReceivingConfig{
			MaxAttempts: getEnvInt("RECEIPT_MAX_ATTEMPTS", 3),
		},
		Purchasing: PurchasingConfig{
			NumberingStrategy: getEnv("PO_NUMBERING_STRATEGY", "strict"),
			NumberingRange:    int64(getEnvInt("PO_NUMBERING_RANGE", 50)),
		},
		Worker: WorkerConfig{
			OutboxBatchSize:      getEnvInt("OUTBOX_BATCH_SIZE", 100),
			OutboxSchedule:       getEnv("OUTBOX_SCHEDULE", "@every 5s"),
			HousekeepingSchedule: getEnv("HOUSEKEEPING_SCHEDULE", "@hourly"),
			PublishedRetention:   getEnvDuration("OUTBOX_RETENTION", 7*24*time.Hour),
			WebhookURL:           os.Getenv("EVENT_WEBHOOK_URL"),
			WebhookSecret:        os.Getenv("EVENT_WEBHOOK_SECRET"),
			WebhookTimeout:       getEnvDuration("EVENT_WEBHOOK_TIMEOUT", 10*time.Second),
			MetricsAddr:          getEnv("WORKER_METRICS_ADDR", ":9091"),
		},
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
		if cfg.Storage.DatabaseURL != "" {
			cfg.Storage.Driver = DriverPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures required fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		if !c.Development() {
			return errors.New("JWT_SECRET must be provided")
		}
		c.Auth.JWTSecret = "dev-secret-change-me"
	}

	if c.Receiving.MaxAttempts < 1 {
		return errors.New("RECEIPT_MAX_ATTEMPTS must be at least 1")
	}
	switch c.Purchasing.NumberingStrategy {
	case "strict", "cached":
	default:
		return fmt.Errorf("unknown PO_NUMBERING_STRATEGY %q", c.Purchasing.NumberingStrategy)
	}
	if c.Worker.OutboxBatchSize < 1 {
		return errors.New("OUTBOX_BATCH_SIZE must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
