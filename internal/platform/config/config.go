// Package config builds runtime configuration from environment variables
// so main stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the registry needs at startup. Empty optional
// URLs disable the corresponding backend: no DATABASE_URL means in-memory
// stores, no REDIS_URL disables rate limiting, no KAFKA_BROKERS disables
// the audit stream.
type Config struct {
	Addr          string
	JWTSigningKey string

	DatabaseURL   string
	MigrationsDir string

	RedisURL        string
	RateLimitPerSec float64
	RateLimitBurst  float64

	KafkaBrokers    string
	KafkaAuditTopic string

	ShutdownTimeout time.Duration
}

// FromEnv reads configuration from the environment, applying development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:            envOr("CERTREG_ADDR", ":8080"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MigrationsDir:   envOr("MIGRATIONS_DIR", "migrations"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RateLimitPerSec: envFloat("RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:  envFloat("RATE_LIMIT_BURST", 30),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaAuditTopic: envOr("KAFKA_AUDIT_TOPIC", "certreg.audit"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
