package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "yolo" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"exposure cap too high", func(c *Config) { c.Engine.ExposureCap = 1.5 }, "exposure_cap"},
		{"zero min profit", func(c *Config) { c.Detector.MinProfit = 0 }, "min_profit"},
		{"endgame bid below half", func(c *Config) { c.Detector.EndgameMinBid = 0.4 }, "endgame_min_bid"},
		{"bad sort key", func(c *Config) { c.Detector.SortKey = "roi" }, "sort_key"},
		{"zero bankroll", func(c *Config) { c.Controller.Bankroll = 0 }, "bankroll"},
		{"pool min exceeds max", func(c *Config) { c.Postgres.PoolMinConns = 50 }, "pool_min_conns"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true; c.S3.Bucket = "" }, "bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "monitor"
log_level = "debug"

[detector]
min_profit = 0.005

[controller]
bankroll = 25000.0
cooldown = "15m"

[[feeds]]
url = "wss://example.com/ws"
platform = "polymarket"
markets = ["mkt-1", "mkt-2"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ARBENGINE_BANKROLL", "50000")
	t.Setenv("ARBENGINE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" {
		t.Errorf("mode = %q, want monitor", cfg.Mode)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, env override should win, want warn", cfg.LogLevel)
	}
	if cfg.Detector.MinProfit != 0.005 {
		t.Errorf("min_profit = %g, want 0.005", cfg.Detector.MinProfit)
	}
	if cfg.Controller.Bankroll != 50000 {
		t.Errorf("bankroll = %g, env override should win, want 50000", cfg.Controller.Bankroll)
	}
	if cfg.Controller.Cooldown.Duration.Minutes() != 15 {
		t.Errorf("cooldown = %v, want 15m", cfg.Controller.Cooldown.Duration)
	}
	if len(cfg.Feeds) != 1 || len(cfg.Feeds[0].Markets) != 2 {
		t.Fatalf("feeds not decoded: %+v", cfg.Feeds)
	}
	// Untouched sections keep their defaults.
	if cfg.Exec.Retries != 3 {
		t.Errorf("retries = %d, want default 3", cfg.Exec.Retries)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Polymarket.ApiSecret = "super-secret"
	cfg.Kalshi.ApiKey = "key-id"
	cfg.Redis.Password = "hunter2"
	cfg.Feeds = []FeedConfig{{URL: "wss://x", Platform: "kalshi", Markets: []string{"a"}}}

	red := RedactedConfig(cfg)
	if red.Polymarket.ApiSecret != "***" || red.Kalshi.ApiKey != "***" || red.Redis.Password != "***" {
		t.Errorf("secrets not redacted: %+v", red)
	}
	if cfg.Polymarket.ApiSecret != "super-secret" {
		t.Error("original config mutated")
	}

	red.Feeds[0].Markets[0] = "b"
	if cfg.Feeds[0].Markets[0] != "a" {
		t.Error("redacted copy shares market slice with original")
	}
}
