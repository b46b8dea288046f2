package config

// RedactedConfig returns a copy of cfg with all secret material replaced by
// "***" so the result is safe to log at startup.
func RedactedConfig(cfg Config) Config {
	out := cfg

	redact(&out.Polymarket.ApiKey)
	redact(&out.Polymarket.ApiSecret)
	redact(&out.Polymarket.ApiPassphrase)
	redact(&out.Polymarket.SecretPassword)
	redact(&out.Kalshi.ApiKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Slices are shared with the input; deep-copy before anything mutates.
	out.Feeds = make([]FeedConfig, len(cfg.Feeds))
	copy(out.Feeds, cfg.Feeds)
	for i := range out.Feeds {
		out.Feeds[i].Markets = append([]string(nil), cfg.Feeds[i].Markets...)
		out.Feeds[i].Channels = append([]string(nil), cfg.Feeds[i].Channels...)
	}

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
