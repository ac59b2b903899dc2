package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server binary needs from its environment.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	AMQPURL       string
	JWTSigningKey string

	// OverstayRuleID names the catalog rule automatic overstay sanctions
	// are filed under. Empty means overstays count as MINOR faults with
	// no rule reference.
	OverstayRuleID string

	// SweepInterval is the fixed rate of the expiration sweeper.
	SweepInterval time.Duration
	// EntryWindow is how far before and after a reservation's start time the
	// entry token is accepted.
	EntryWindow time.Duration
	// ReminderWindow is how close to its end an active reservation must be
	// before the sweeper sends an exit reminder.
	ReminderWindow time.Duration
	// StoreTimeout bounds every store operation issued by request handlers
	// and the sweeper.
	StoreTimeout time.Duration
	// SessionTTL bounds the lifetime of issued login tokens.
	SessionTTL time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// Defaults suit local development; production deployments override them.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("PARQUEO_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("PARQUEO_DATABASE_URL"),
		RedisURL:       os.Getenv("PARQUEO_REDIS_URL"),
		AMQPURL:        os.Getenv("PARQUEO_AMQP_URL"),
		JWTSigningKey:  envOr("PARQUEO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		OverstayRuleID: os.Getenv("PARQUEO_OVERSTAY_RULE_ID"),
		SweepInterval:  envDuration("PARQUEO_SWEEP_INTERVAL", 30*time.Second),
		EntryWindow:    envDuration("PARQUEO_ENTRY_WINDOW", 30*time.Minute),
		ReminderWindow: envDuration("PARQUEO_REMINDER_WINDOW", 30*time.Minute),
		StoreTimeout:   envDuration("PARQUEO_STORE_TIMEOUT", 5*time.Second),
		SessionTTL:     envDuration("PARQUEO_SESSION_TTL", 8*time.Hour),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
