// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	JWTSigningKey string

	// SweepInterval drives the expiry sweep; WarnInterval drives the
	// expiring-soon check.
	SweepInterval time.Duration
	WarnInterval  time.Duration

	// NotifyOnCreate enables donor/bank discovery and notification fan-out
	// when a blood request is created.
	NotifyOnCreate bool
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:           envOr("BLOODLINK_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSigningKey:  envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SweepInterval:  durationOr("BLOODLINK_SWEEP_INTERVAL", 24*time.Hour),
		WarnInterval:   durationOr("BLOODLINK_WARN_INTERVAL", 12*time.Hour),
		NotifyOnCreate: os.Getenv("BLOODLINK_NOTIFY_ON_CREATE") != "false",
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
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
