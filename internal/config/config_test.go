package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "CACHE_TTL", "LOG_LEVEL", "INITIAL_CASH",
		"IMPACT_QUEUE_SIZE", "CONTENT_API_URL", "CONTENT_TIMEOUT", "CONTENT_RATE_PER_MINUTE",
		"TICK_SCHEDULE", "TICK_VOLATILITY", "CORS_ORIGINS", "SEED_ASSETS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Error("store urls should default to empty")
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("cache ttl = %s", cfg.CacheTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %s", cfg.LogLevel)
	}
	if !cfg.InitialCash.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("initial cash = %s", cfg.InitialCash)
	}
	if cfg.ImpactQueueSize != 1024 {
		t.Errorf("queue size = %d", cfg.ImpactQueueSize)
	}
	if cfg.Content.Timeout != 8*time.Second || cfg.Content.RatePerMinute != 30 {
		t.Errorf("content = %+v", cfg.Content)
	}
	if cfg.Market.TickSchedule != "0 */5 * * * *" {
		t.Errorf("tick schedule = %q", cfg.Market.TickSchedule)
	}
	if !cfg.Market.TickVolatility.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("volatility = %s", cfg.Market.TickVolatility)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
	if !cfg.SeedAssets {
		t.Error("seed assets should default to true")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("INITIAL_CASH", "2500.50")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SEED_ASSETS", "false")
	t.Setenv("CACHE_TTL", "garbage")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %s", cfg.LogLevel)
	}
	if !cfg.InitialCash.Equal(decimal.RequireFromString("2500.50")) {
		t.Errorf("initial cash = %s", cfg.InitialCash)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
	if cfg.SeedAssets {
		t.Error("seed assets should be false")
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("malformed duration should fall back, got %s", cfg.CacheTTL)
	}
}

func TestLoad_RejectsBadMoney(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"INITIAL_CASH", "lots"},
		{"INITIAL_CASH", "-5"},
		{"TICK_VOLATILITY", "1.5"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
