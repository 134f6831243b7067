// Package config loads Axle configuration from an optional .env file and
// AXLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/axle/internal/domain"
)

// DefaultEnvFile is read when Load is called without arguments.
const DefaultEnvFile = ".env"

// Load starts from domain.DefaultConfig and applies environment overrides.
// Values from env files never replace variables already set in the process
// environment. A missing default .env is not an error.
func Load(envFiles ...string) (*domain.Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", DefaultEnvFile, err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to read env files: %w", err)
	}

	cfg := domain.DefaultConfig()
	apply(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *domain.Config) {
	cfg.Environment = getEnv("AXLE_ENV", cfg.Environment)

	cfg.Server.Host = getEnv("AXLE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("AXLE_PORT", cfg.Server.Port)

	cfg.Repository.Driver = getEnv("AXLE_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = getEnv("AXLE_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = getEnv("AXLE_POSTGRES_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = getEnvInt("AXLE_POSTGRES_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = getEnv("AXLE_POSTGRES_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = getEnv("AXLE_POSTGRES_PASSWORD", cfg.Repository.PostgresPassword)
	cfg.Repository.PostgresDB = getEnv("AXLE_POSTGRES_DB", cfg.Repository.PostgresDB)
	cfg.Repository.PostgresSSLMode = getEnv("AXLE_POSTGRES_SSLMODE", cfg.Repository.PostgresSSLMode)

	cfg.Cache.Type = getEnv("AXLE_CACHE_TYPE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = getEnv("AXLE_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getEnv("AXLE_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = getEnvInt("AXLE_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.EnableTwoPhase = getEnvBool("AXLE_CACHE_TWO_PHASE", cfg.Cache.Type == "redis")

	cfg.EventBus.Type = getEnv("AXLE_BUS_TYPE", cfg.EventBus.Type)
	cfg.EventBus.NATSUrl = getEnv("AXLE_NATS_URL", cfg.EventBus.NATSUrl)
	cfg.EventBus.NATSToken = getEnv("AXLE_NATS_TOKEN", cfg.EventBus.NATSToken)

	cfg.OCR.Provider = strings.ToLower(getEnv("AXLE_OCR_PROVIDER", cfg.OCR.Provider))
	cfg.OCR.AWSRegion = getEnv("AXLE_AWS_REGION", getEnv("AWS_REGION", cfg.OCR.AWSRegion))
	cfg.OCR.CacheTTL = getEnvDuration("AXLE_PLATE_CACHE_TTL", cfg.OCR.CacheTTL)

	cfg.Upload.MaxBytes = int64(getEnvInt("AXLE_UPLOAD_MAX_BYTES", int(cfg.Upload.MaxBytes)))

	cfg.Alerts.Enabled = getEnvBool("AXLE_ALERTS_ENABLED", cfg.Alerts.Enabled)

	cfg.Logging.Level = getEnv("AXLE_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("AXLE_LOG_FORMAT", cfg.Logging.Format)
	if os.Getenv("AXLE_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
}

// Validate rejects unknown component types and out-of-range values.
func Validate(cfg *domain.Config) error {
	var problems []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", cfg.Server.Port))
	}
	if !oneOf(cfg.Repository.Driver, "sqlite", "postgres") {
		problems = append(problems, fmt.Sprintf("unsupported db driver %q", cfg.Repository.Driver))
	}
	if !oneOf(cfg.Cache.Type, "memory", "redis") {
		problems = append(problems, fmt.Sprintf("unsupported cache type %q", cfg.Cache.Type))
	}
	if !oneOf(cfg.EventBus.Type, "channel", "nats") {
		problems = append(problems, fmt.Sprintf("unsupported bus type %q", cfg.EventBus.Type))
	}
	if !oneOf(cfg.OCR.Provider, "none", "rekognition") {
		problems = append(problems, fmt.Sprintf("unsupported OCR provider %q", cfg.OCR.Provider))
	}
	if cfg.Upload.MaxBytes <= 0 {
		problems = append(problems, "upload max bytes must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
