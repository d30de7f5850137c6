package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Queue    QueueConfig    `yaml:"queue" mapstructure:"queue"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProviderConfig holds mail-provider API credentials and endpoints.
type ProviderConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
	TenantID     string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	Scope        string `yaml:"scope" mapstructure:"scope"`
	RatePerSec   int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SyncConfig configures the mailbox sync engine.
type SyncConfig struct {
	PageSize            int      `yaml:"page_size" mapstructure:"page_size"`
	StopAfterStalePages int      `yaml:"stop_after_stale_pages" mapstructure:"stop_after_stale_pages"`
	MaxConcurrent       int      `yaml:"max_concurrent_mailboxes" mapstructure:"max_concurrent_mailboxes"`
	IntervalMins        int      `yaml:"interval_mins" mapstructure:"interval_mins"`
	SkipFolders         []string `yaml:"skip_folders" mapstructure:"skip_folders"`
}

// ClassifyConfig configures the rule cascade.
type ClassifyConfig struct {
	OwnDomain string `yaml:"own_domain" mapstructure:"own_domain"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ScoringConfig configures trust and actionability recomputes.
type ScoringConfig struct {
	ActionabilityBatchSize int `yaml:"actionability_batch_size" mapstructure:"actionability_batch_size"`
	RecentWindowDays       int `yaml:"recent_window_days" mapstructure:"recent_window_days"`
}

// QueueConfig configures closure ranking and allocation.
type QueueConfig struct {
	WindowDays int    `yaml:"window_days" mapstructure:"window_days"`
	TopN       int    `yaml:"top_n" mapstructure:"top_n"`
	DailyCap   int    `yaml:"daily_cap" mapstructure:"daily_cap"`
	Strategy   string `yaml:"strategy" mapstructure:"strategy"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// CacheConfig configures the read-endpoint result cache.
type CacheConfig struct {
	TTLSecs int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cache.ttl_secs", 60)
	v.SetDefault("provider.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("provider.scope", "https://graph.microsoft.com/.default")
	v.SetDefault("provider.rate_per_sec", 10)
	v.SetDefault("provider.timeout_secs", 30)
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.stop_after_stale_pages", 3)
	v.SetDefault("sync.max_concurrent_mailboxes", 4)
	v.SetDefault("sync.interval_mins", 60)
	v.SetDefault("sync.skip_folders", []string{
		"Conversation History", "RSS Feeds", "RSS Subscriptions",
		"Outbox", "Sync Issues", "Junk Email",
	})
	v.SetDefault("classify.batch_size", 500)
	v.SetDefault("scoring.actionability_batch_size", 1000)
	v.SetDefault("scoring.recent_window_days", 30)
	v.SetDefault("queue.window_days", 7)
	v.SetDefault("queue.top_n", 200)
	v.SetDefault("queue.daily_cap", 30)
	v.SetDefault("queue.strategy", "round_robin")

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

	return &cfg, nil
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
