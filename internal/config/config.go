package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config collects everything the API binary reads from the environment.
type Config struct {
	ListenAddr  string
	PostgresDSN string

	AuthSecret string
	AuthIssuer string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	RateBurst  int
	RatePerSec int

	// TestRoleEnabled allows clients to simulate a lower/higher role for UI
	// preview. Must stay off in production deployments.
	TestRoleEnabled bool
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:  getEnvOrDefault("PTS_LISTEN_ADDR", ":8080"),
		PostgresDSN: os.Getenv("PTS_PG_DSN"),

		AuthSecret: os.Getenv("PTS_AUTH_SECRET"),
		AuthIssuer: getEnvOrDefault("PTS_AUTH_ISSUER", "pts"),
		AccessTTL:  getDurationOrDefault("PTS_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getDurationOrDefault("PTS_REFRESH_TTL", 14*24*time.Hour),

		RateBurst:  getIntOrDefault("PTS_RATE_BURST", 20),
		RatePerSec: getIntOrDefault("PTS_RATE_PER_SEC", 10),

		TestRoleEnabled: getBoolOrDefault("PTS_TEST_ROLE_ENABLED", false),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
