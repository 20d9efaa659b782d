package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the fields required by mode are present and that
// numeric settings are within range. Modes: scan, serve, cleanup, monitor.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "scan":
		errs = append(errs, c.validateScan()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "cleanup":
		if c.Scan.RetentionDays < 1 {
			errs = append(errs, "scan.retention_days must be >= 1")
		}
	case "monitor":
		if c.Monitoring.LookbackHours < 1 {
			errs = append(errs, "monitoring.lookback_hours must be >= 1")
		}
		if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScan() []string {
	var errs []string

	if c.Scan.DefaultThreshold < 0 || c.Scan.DefaultThreshold > 1 {
		errs = append(errs, "scan.default_threshold must be between 0 and 1")
	}
	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 32 {
		errs = append(errs, "scan.concurrency must be between 1 and 32")
	}
	if c.Scan.TickerDelaySecs < 0 {
		errs = append(errs, "scan.ticker_delay_secs must be >= 0")
	}

	switch c.Classifier.Provider {
	case "lexicon":
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	default:
		errs = append(errs, "classifier.provider must be lexicon or anthropic")
	}

	switch c.Sink.Provider {
	case "none":
	case "github":
		if c.GitHub.Token == "" {
			errs = append(errs, "github.token is required")
		}
		if owner, repo, ok := strings.Cut(c.GitHub.Repository, "/"); !ok || owner == "" || repo == "" {
			errs = append(errs, "github.repository must be owner/name")
		}
	case "webhook":
		if c.Webhook.URL == "" {
			errs = append(errs, "webhook.url is required")
		}
	default:
		errs = append(errs, "sink.provider must be github, webhook or none")
	}

	return errs
}
