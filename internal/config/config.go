package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL string
	RedisURL    string

	AuthJWTSecret string

	AttachmentBaseURL string
	UploadURLSecret   string
	UploadURLExpiry   time.Duration

	MaxConnections      int64
	MaxConnectionsPerIP int

	BroadcastParallelism int
	PushTimeout          time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		AuthJWTSecret:     getEnv("AUTH_JWT_SECRET", ""),
		AttachmentBaseURL: getEnv("ATTACHMENT_BASE_URL", ""),
		UploadURLSecret:   getEnv("UPLOAD_URL_SECRET", ""),
	}

	var err error
	if cfg.UploadURLExpiry, err = getDurationEnv("SIGNED_URL_EXPIRATION", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxConnections, err = getInt64Env("MAX_CONNECTIONS", 10000); err != nil {
		return nil, err
	}
	if cfg.MaxConnectionsPerIP, err = getIntEnv("MAX_CONNECTIONS_PER_IP", 20); err != nil {
		return nil, err
	}
	if cfg.BroadcastParallelism, err = getIntEnv("BROADCAST_PARALLELISM", 16); err != nil {
		return nil, err
	}
	if cfg.PushTimeout, err = getDurationEnv("PUSH_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = getFloatEnv("RATE_LIMIT_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getIntEnv("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if cfg.UploadURLSecret == "" {
		// Attachment URLs are signed with the auth secret unless a dedicated
		// one is configured.
		cfg.UploadURLSecret = cfg.AuthJWTSecret
	}
	if cfg.BroadcastParallelism < 1 {
		return nil, fmt.Errorf("BROADCAST_PARALLELISM must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	// Accept plain seconds for compatibility with the deployment manifests.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration or seconds: %w", key, err)
	}
	return d, nil
}
