package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"PARQUEO_ADDR", "PARQUEO_DATABASE_URL", "PARQUEO_REDIS_URL",
		"PARQUEO_AMQP_URL", "PARQUEO_JWT_SIGNING_KEY", "PARQUEO_OVERSTAY_RULE_ID",
		"PARQUEO_SWEEP_INTERVAL", "PARQUEO_ENTRY_WINDOW", "PARQUEO_REMINDER_WINDOW",
		"PARQUEO_STORE_TIMEOUT", "PARQUEO_SESSION_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.OverstayRuleID)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.EntryWindow)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PARQUEO_ADDR", ":9090")
	t.Setenv("PARQUEO_OVERSTAY_RULE_ID", "0b8e7a7b-3f46-4f1e-9f44-1f1a2b3c4d5e")
	t.Setenv("PARQUEO_SWEEP_INTERVAL", "10s")
	t.Setenv("PARQUEO_STORE_TIMEOUT", "2")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "0b8e7a7b-3f46-4f1e-9f44-1f1a2b3c4d5e", cfg.OverstayRuleID)
	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	// Bare integers are read as seconds.
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
}
