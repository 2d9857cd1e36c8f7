package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PTS_LISTEN_ADDR", "PTS_PG_DSN", "PTS_AUTH_SECRET", "PTS_AUTH_ISSUER",
		"PTS_ACCESS_TTL", "PTS_REFRESH_TTL", "PTS_RATE_BURST", "PTS_RATE_PER_SEC",
		"PTS_TEST_ROLE_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.AuthIssuer != "pts" {
		t.Fatalf("unexpected issuer: %s", cfg.AuthIssuer)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl: %s", cfg.AccessTTL)
	}
	if cfg.TestRoleEnabled {
		t.Fatal("test role must default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PTS_LISTEN_ADDR", ":9999")
	t.Setenv("PTS_ACCESS_TTL", "5m")
	t.Setenv("PTS_RATE_BURST", "42")
	t.Setenv("PTS_TEST_ROLE_ENABLED", "true")

	cfg := Load()
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Fatalf("unexpected access ttl: %s", cfg.AccessTTL)
	}
	if cfg.RateBurst != 42 {
		t.Fatalf("unexpected burst: %d", cfg.RateBurst)
	}
	if !cfg.TestRoleEnabled {
		t.Fatal("expected test role enabled")
	}
}
