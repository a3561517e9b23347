// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the service.
type Config struct {
	Addr        string
	DatabaseURL string // empty selects the in-memory store
	RedisURL    string // empty disables the read cache
	CacheTTL    time.Duration
	LogLevel    slog.Level

	InitialCash     decimal.Decimal
	ImpactQueueSize int

	Content ContentConfig
	Market  MarketConfig

	CORSOrigins []string
	SeedAssets  bool
}

// ContentConfig configures the generative content backend.
type ContentConfig struct {
	APIURL        string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
}

// MarketConfig configures the periodic simulation.
type MarketConfig struct {
	TickSchedule   string
	CloseSchedule  string
	TickVolatility decimal.Decimal
}

// Load reads configuration from a .env file, if present, and the environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	addr := envDefault("PORT", "8080")
	if !strings.HasPrefix(addr, ":") && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	level, err := parseLevel(envDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	initialCash, err := envDecimalDefault("INITIAL_CASH", decimal.NewFromInt(100000))
	if err != nil {
		return nil, err
	}
	if !initialCash.IsPositive() {
		return nil, fmt.Errorf("INITIAL_CASH must be positive, got %s", initialCash)
	}
	volatility, err := envDecimalDefault("TICK_VOLATILITY", decimal.RequireFromString("0.01"))
	if err != nil {
		return nil, err
	}
	if volatility.IsNegative() || volatility.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("TICK_VOLATILITY must be in [0, 1), got %s", volatility)
	}

	cfg := &Config{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:        strings.TrimSpace(os.Getenv("REDIS_URL")),
		CacheTTL:        envDurationDefault("CACHE_TTL", 30*time.Second),
		LogLevel:        level,
		InitialCash:     initialCash,
		ImpactQueueSize: envIntDefault("IMPACT_QUEUE_SIZE", 1024),
		Content: ContentConfig{
			APIURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("CONTENT_API_URL")), "/"),
			APIKey:        strings.TrimSpace(os.Getenv("CONTENT_API_KEY")),
			Timeout:       envDurationDefault("CONTENT_TIMEOUT", 8*time.Second),
			RatePerMinute: envIntDefault("CONTENT_RATE_PER_MINUTE", 30),
		},
		Market: MarketConfig{
			TickSchedule:   envDefault("TICK_SCHEDULE", "0 */5 * * * *"),
			CloseSchedule:  envDefault("CLOSE_SCHEDULE", "30 * * * * *"),
			TickVolatility: volatility,
		},
		CORSOrigins: splitList(envDefault("CORS_ORIGINS", "*")),
		SeedAssets:  envBoolDefault("SEED_ASSETS", true),
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDecimalDefault returns an error for malformed values instead of the fallback.
func envDecimalDefault(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
