// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBENGINE_* environment variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Detector   DetectorConfig   `toml:"detector"`
	Sizer      SizerConfig      `toml:"sizer"`
	Controller ControllerConfig `toml:"controller"`
	Exec       ExecConfig       `toml:"exec"`
	Micro      MicroConfig      `toml:"micro"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Feeds      []FeedConfig     `toml:"feeds"`
	Archive    ArchiveConfig    `toml:"archive"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds top-level engine parameters.
type EngineConfig struct {
	// ExposureCap bounds the total bankroll fraction allocated across
	// concurrent opportunities.
	ExposureCap float64 `toml:"exposure_cap"`

	// ColdStart lets the sizer fall back to conservative priors when trade
	// history is too thin.
	ColdStart bool `toml:"cold_start"`

	// DetectInterval is how often the detection loop scans cached quotes.
	DetectInterval duration `toml:"detect_interval"`
}

// DetectorConfig holds opportunity detection thresholds.
type DetectorConfig struct {
	MinProfit            float64 `toml:"min_profit"`
	VolumeNorm           float64 `toml:"volume_norm"`
	EndgameMinBid        float64 `toml:"endgame_min_bid"`
	EndgameMinAnnualized float64 `toml:"endgame_min_annualized"`
	// SortKey ranks detected opportunities: "profit" or "annualized".
	SortKey string `toml:"sort_key"`
}

// SizerConfig holds Kelly position-sizing parameters.
type SizerConfig struct {
	SafetyMultiplier float64 `toml:"safety_multiplier"`
	MaxFraction      float64 `toml:"max_fraction"`
	MinSamples       int     `toml:"min_samples"`
	OpportunityLoss  float64 `toml:"opportunity_loss"`
	PriorWinProb     float64 `toml:"prior_win_prob"`
	PriorAvgWin      float64 `toml:"prior_avg_win"`
	PriorAvgLoss     float64 `toml:"prior_avg_loss"`
}

// ControllerConfig holds adaptive risk controller parameters.
type ControllerConfig struct {
	Bankroll       float64  `toml:"bankroll"`
	DailyRiskLimit float64  `toml:"daily_risk_limit"`
	WinRateFloor   float64  `toml:"win_rate_floor"`
	MinTrades      int      `toml:"min_trades"`
	Cooldown       duration `toml:"cooldown"`
}

// ExecConfig holds execution planner parameters.
type ExecConfig struct {
	MaxSlippage           float64  `toml:"max_slippage"`
	FallbackExtraSlippage float64  `toml:"fallback_extra_slippage"`
	TimeLimit             duration `toml:"time_limit"`
	Retries               int      `toml:"retries"`
}

// MicroConfig holds microstructure analyzer parameters.
type MicroConfig struct {
	Window       duration `toml:"window"`
	MaxSnapshots int      `toml:"max_snapshots"`
	MinSamples   int      `toml:"min_samples"`
	FreqNorm     int      `toml:"freq_norm"`
	DepthNorm    float64  `toml:"depth_norm"`
}

// PolymarketConfig holds Polymarket API endpoints and credentials.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	Address       string `toml:"address"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
	// EncryptedSecretPath points to a JSON blob produced by the secret
	// encryption helper; Password decrypts it. Used when ApiSecret is empty.
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig holds one venue market-data feed subscription.
type FeedConfig struct {
	URL      string   `toml:"url"`
	Platform string   `toml:"platform"`
	Markets  []string `toml:"markets"`
	Channels []string `toml:"channels"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			ExposureCap:    0.5,
			ColdStart:      true,
			DetectInterval: duration{2 * time.Second},
		},
		Detector: DetectorConfig{
			MinProfit:            0.001,
			VolumeNorm:           10_000,
			EndgameMinBid:        0.90,
			EndgameMinAnnualized: 0.20,
			SortKey:              "profit",
		},
		Sizer: SizerConfig{
			SafetyMultiplier: 0.25,
			MaxFraction:      0.25,
			MinSamples:       10,
			OpportunityLoss:  0.02,
			PriorWinProb:     0.55,
			PriorAvgWin:      0.12,
			PriorAvgLoss:     0.08,
		},
		Controller: ControllerConfig{
			Bankroll:       10_000,
			DailyRiskLimit: 0.10,
			WinRateFloor:   0.40,
			MinTrades:      10,
			Cooldown:       duration{30 * time.Minute},
		},
		Exec: ExecConfig{
			MaxSlippage:           0.01,
			FallbackExtraSlippage: 0.02,
			TimeLimit:             duration{30 * time.Second},
			Retries:               3,
		},
		Micro: MicroConfig{
			Window:       duration{5 * time.Minute},
			MaxSnapshots: 100,
			MinSamples:   10,
			FreqNorm:     20,
			DepthNorm:    1_000,
		},
		Polymarket: PolymarketConfig{
			ClobHost: "https://clob.polymarket.com",
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbengine-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true, // detect + size + execute
	"monitor": true, // detect + size, no order placement
	"archive": true, // one-shot cold-storage archival
	"full":    true, // trade + archive scheduling
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSortKeys enumerates the accepted values for Detector.SortKey.
var validSortKeys = map[string]bool{
	"profit":     true,
	"annualized": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.ExposureCap <= 0 || c.Engine.ExposureCap > 1 {
		errs = append(errs, fmt.Sprintf("engine: exposure_cap must be in (0,1], got %g", c.Engine.ExposureCap))
	}

	// Detector
	if c.Detector.MinProfit <= 0 {
		errs = append(errs, "detector: min_profit must be > 0")
	}
	if c.Detector.EndgameMinBid <= 0.5 || c.Detector.EndgameMinBid >= 1 {
		errs = append(errs, fmt.Sprintf("detector: endgame_min_bid must be in (0.5,1), got %g", c.Detector.EndgameMinBid))
	}
	if !validSortKeys[c.Detector.SortKey] {
		errs = append(errs, fmt.Sprintf("detector: unknown sort_key %q (valid: profit, annualized)", c.Detector.SortKey))
	}

	// Sizer
	if c.Sizer.SafetyMultiplier <= 0 || c.Sizer.SafetyMultiplier > 1 {
		errs = append(errs, "sizer: safety_multiplier must be in (0,1]")
	}
	if c.Sizer.MaxFraction <= 0 || c.Sizer.MaxFraction > 1 {
		errs = append(errs, "sizer: max_fraction must be in (0,1]")
	}
	if c.Sizer.MinSamples < 1 {
		errs = append(errs, "sizer: min_samples must be >= 1")
	}

	// Controller
	if c.Controller.Bankroll <= 0 {
		errs = append(errs, "controller: bankroll must be > 0")
	}
	if c.Controller.DailyRiskLimit <= 0 || c.Controller.DailyRiskLimit > 1 {
		errs = append(errs, "controller: daily_risk_limit must be in (0,1]")
	}
	if c.Controller.WinRateFloor < 0 || c.Controller.WinRateFloor >= 1 {
		errs = append(errs, "controller: win_rate_floor must be in [0,1)")
	}

	// Exec
	if c.Exec.MaxSlippage < 0 {
		errs = append(errs, "exec: max_slippage must be >= 0")
	}
	if c.Exec.Retries < 0 {
		errs = append(errs, "exec: retries must be >= 0")
	}

	// Platform credentials are only needed when orders will be placed.
	needsVenues := c.Mode == "trade" || c.Mode == "full"
	if needsVenues {
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host must not be empty for mode "+c.Mode)
		}
		if c.Kalshi.BaseURL == "" {
			errs = append(errs, "kalshi: base_url must not be empty for mode "+c.Mode)
		}
		if c.Polymarket.EncryptedSecretPath != "" && c.Polymarket.SecretPassword == "" {
			errs = append(errs, "polymarket: secret_password is required when encrypted_secret_path is set")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when archival is on.
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archival is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archival is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Feeds
	for i, f := range c.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Sprintf("feeds[%d]: url must not be empty", i))
		}
		if f.Platform == "" {
			errs = append(errs, fmt.Sprintf("feeds[%d]: platform must not be empty", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
