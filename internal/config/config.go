package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Sink       SinkConfig       `yaml:"sink" mapstructure:"sink"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScanConfig configures the per-ticker scan loop.
type ScanConfig struct {
	WatchlistPath    string   `yaml:"watchlist_path" mapstructure:"watchlist_path"`
	DefaultThreshold float64  `yaml:"default_threshold" mapstructure:"default_threshold"`
	TickerDelaySecs  int      `yaml:"ticker_delay_secs" mapstructure:"ticker_delay_secs"`
	Concurrency      int      `yaml:"concurrency" mapstructure:"concurrency"`
	Pipeline         []string `yaml:"pipeline" mapstructure:"pipeline"`
	StageTimeoutSecs int      `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	RetentionDays    int      `yaml:"retention_days" mapstructure:"retention_days"`
}

// TickerDelay returns the pause between consecutive tickers.
func (s ScanConfig) TickerDelay() time.Duration {
	return time.Duration(s.TickerDelaySecs) * time.Second
}

// StageTimeout returns the per-stage timeout, zero meaning none.
func (s ScanConfig) StageTimeout() time.Duration {
	return time.Duration(s.StageTimeoutSecs) * time.Second
}

// SourcesConfig configures the news sources.
type SourcesConfig struct {
	TimeoutSecs int          `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string       `yaml:"user_agent" mapstructure:"user_agent"`
	RSS         RSSConfig    `yaml:"rss" mapstructure:"rss"`
	Finviz      FinvizConfig `yaml:"finviz" mapstructure:"finviz"`
	Yahoo       YahooConfig  `yaml:"yahoo" mapstructure:"yahoo"`
}

// Timeout returns the per-source fetch timeout.
func (s SourcesConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// RSSConfig lists the RSS feeds scanned for ticker mentions.
type RSSConfig struct {
	Enabled bool      `yaml:"enabled" mapstructure:"enabled"`
	Feeds   []FeedRef `yaml:"feeds" mapstructure:"feeds"`
}

// FeedRef names one RSS feed.
type FeedRef struct {
	Name string `yaml:"name" mapstructure:"name"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// FinvizConfig configures the Finviz quote page scraper.
type FinvizConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// YahooConfig configures the Yahoo Finance search source.
type YahooConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// ClassifierConfig selects the sentiment classifier.
type ClassifierConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-record classification timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SinkConfig selects where alerts are delivered.
type SinkConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-issue delivery timeout.
func (s SinkConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// GitHubConfig holds GitHub issue creation settings.
type GitHubConfig struct {
	Token      string   `yaml:"token" mapstructure:"token"`
	Repository string   `yaml:"repository" mapstructure:"repository"`
	Labels     []string `yaml:"labels" mapstructure:"labels"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
}

// WebhookConfig holds the generic alert webhook.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// RetryConfig holds retry policy for external calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig holds circuit breaker policy for the alert sink.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures scan health alerting.
type MonitoringConfig struct {
	LookbackHours        int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// DefaultPipeline is the stage order used when scan.pipeline is unset.
var DefaultPipeline = []string{"collect", "persist", "classify", "alert", "annotate"}

// Load reads configuration from file and environment. An empty path looks
// for config.yaml in . and config/, where a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	// Environment
	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Scan.Pipeline) == 0 {
		cfg.Scan.Pipeline = append([]string(nil), DefaultPipeline...)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/newswatch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scan.watchlist_path", "config/stocks.json")
	v.SetDefault("scan.default_threshold", 0.7)
	v.SetDefault("scan.ticker_delay_secs", 5)
	v.SetDefault("scan.concurrency", 1)
	v.SetDefault("scan.stage_timeout_secs", 300)
	v.SetDefault("scan.retention_days", 30)

	v.SetDefault("sources.timeout_secs", 30)
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (compatible; newswatch/1.0)")
	v.SetDefault("sources.rss.enabled", true)
	v.SetDefault("sources.rss.feeds", []map[string]string{
		{"name": "MarketWatch", "url": "http://feeds.marketwatch.com/marketwatch/topstories/"},
		{"name": "CNBC", "url": "https://www.cnbc.com/id/100003114/device/rss/rss.html"},
		{"name": "Seeking Alpha", "url": "https://seekingalpha.com/market_currents.xml"},
	})
	v.SetDefault("sources.finviz.enabled", true)
	v.SetDefault("sources.finviz.base_url", "https://finviz.com/quote.ashx")
	v.SetDefault("sources.yahoo.enabled", false)
	v.SetDefault("sources.yahoo.base_url", "https://query1.finance.yahoo.com/v1/finance/search")
	v.SetDefault("sources.yahoo.max_results", 5)

	v.SetDefault("classifier.provider", "lexicon")
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)

	v.SetDefault("sink.provider", "none")
	v.SetDefault("sink.timeout_secs", 20)
	v.SetDefault("github.token", "")
	v.SetDefault("github.repository", "")
	v.SetDefault("github.labels", []string{"stock-alert"})
	v.SetDefault("github.base_url", "")
	v.SetDefault("webhook.url", "")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("circuit.failure_threshold", 3)
	v.SetDefault("circuit.reset_timeout_secs", 60)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
