package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from the TOML file at path, then applies any
// ARBENGINE_* environment variable overrides on top. A .env file in the
// working directory is loaded first if present. The file may be absent, in
// which case defaults plus environment overrides are used.
func Load(path string) (Config, error) {
	cfg := Defaults()

	// Best-effort .env load; absence is not an error.
	_ = godotenv.Load()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides mutates cfg with values from ARBENGINE_* environment
// variables. Only variables that are set and non-empty take effect.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ARBENGINE_MODE")
	setStr(&cfg.LogLevel, "ARBENGINE_LOG_LEVEL")

	setFloat64(&cfg.Engine.ExposureCap, "ARBENGINE_EXPOSURE_CAP")
	setBool(&cfg.Engine.ColdStart, "ARBENGINE_COLD_START")
	setDuration(&cfg.Engine.DetectInterval, "ARBENGINE_DETECT_INTERVAL")

	setFloat64(&cfg.Detector.MinProfit, "ARBENGINE_DETECTOR_MIN_PROFIT")
	setFloat64(&cfg.Detector.EndgameMinBid, "ARBENGINE_DETECTOR_ENDGAME_MIN_BID")
	setStr(&cfg.Detector.SortKey, "ARBENGINE_DETECTOR_SORT_KEY")

	setFloat64(&cfg.Sizer.SafetyMultiplier, "ARBENGINE_SIZER_SAFETY_MULTIPLIER")
	setFloat64(&cfg.Sizer.MaxFraction, "ARBENGINE_SIZER_MAX_FRACTION")

	setFloat64(&cfg.Controller.Bankroll, "ARBENGINE_BANKROLL")
	setFloat64(&cfg.Controller.DailyRiskLimit, "ARBENGINE_DAILY_RISK_LIMIT")
	setDuration(&cfg.Controller.Cooldown, "ARBENGINE_CONTROLLER_COOLDOWN")

	setFloat64(&cfg.Exec.MaxSlippage, "ARBENGINE_EXEC_MAX_SLIPPAGE")
	setDuration(&cfg.Exec.TimeLimit, "ARBENGINE_EXEC_TIME_LIMIT")
	setInt(&cfg.Exec.Retries, "ARBENGINE_EXEC_RETRIES")

	setStr(&cfg.Polymarket.ClobHost, "ARBENGINE_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.Address, "ARBENGINE_POLYMARKET_ADDRESS")
	setStr(&cfg.Polymarket.ApiKey, "ARBENGINE_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "ARBENGINE_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "ARBENGINE_POLYMARKET_API_PASSPHRASE")
	setStr(&cfg.Polymarket.EncryptedSecretPath, "ARBENGINE_POLYMARKET_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Polymarket.SecretPassword, "ARBENGINE_POLYMARKET_SECRET_PASSWORD")

	setStr(&cfg.Kalshi.ApiKey, "ARBENGINE_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "ARBENGINE_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "ARBENGINE_KALSHI_BASE_URL")

	setStr(&cfg.Postgres.DSN, "ARBENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBENGINE_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "ARBENGINE_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "ARBENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBENGINE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ARBENGINE_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "ARBENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBENGINE_S3_SECRET_KEY")

	setBool(&cfg.Archive.Enabled, "ARBENGINE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARBENGINE_ARCHIVE_RETENTION_DAYS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
