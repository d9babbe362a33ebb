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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Platforms PlatformsConfig `yaml:"platforms" mapstructure:"platforms"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	TextGen   TextGenConfig   `yaml:"textgen" mapstructure:"textgen"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Proposal  ProposalConfig  `yaml:"proposal" mapstructure:"proposal"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Daemon    DaemonConfig    `yaml:"daemon" mapstructure:"daemon"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the optional seen-link cache.
type RedisConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	SeenTTLHours int    `yaml:"seen_ttl_hours" mapstructure:"seen_ttl_hours"`
}

// BrowserConfig configures the rendered-page capability.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	NavTimeoutSecs      int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	SelectorTimeoutSecs int    `yaml:"selector_timeout_secs" mapstructure:"selector_timeout_secs"`
}

// PlatformsConfig selects which marketplaces a cycle covers.
type PlatformsConfig struct {
	Enabled       []string `yaml:"enabled" mapstructure:"enabled"`
	SelectorFile  string   `yaml:"selector_file" mapstructure:"selector_file"`
	MaxConcurrent int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// SessionConfig configures session lifetime and the login retry policy.
type SessionConfig struct {
	TTLHours         int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	LoginMaxAttempts int    `yaml:"login_max_attempts" mapstructure:"login_max_attempts"`
	LoginBackoffSecs int    `yaml:"login_backoff_secs" mapstructure:"login_backoff_secs"`
	ScreenshotDir    string `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
}

// TextGenConfig holds the OpenAI-compatible generation service settings.
type TextGenConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings for the alternative provider.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ProposalConfig selects the generation provider and fallback behavior.
type ProposalConfig struct {
	Provider          string `yaml:"provider" mapstructure:"provider"` // "textgen" or "anthropic"
	FallbackEnabled   bool   `yaml:"fallback_enabled" mapstructure:"fallback_enabled"`
	DefaultProfile    string `yaml:"default_profile" mapstructure:"default_profile"`
	DefaultDirectives string `yaml:"default_directives" mapstructure:"default_directives"`
}

// NotifyConfig configures the outbound notification relay.
type NotifyConfig struct {
	RelayURL      string `yaml:"relay_url" mapstructure:"relay_url"`
	RelayKey      string `yaml:"relay_key" mapstructure:"relay_key"`
	RatePerMinute int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	ReviewURL     string `yaml:"review_url" mapstructure:"review_url"` // base for digest deep links
}

// DaemonConfig configures the continuous discovery loop.
type DaemonConfig struct {
	IntervalSecs   int    `yaml:"interval_secs" mapstructure:"interval_secs"`
	MaxRuntimeSecs int    `yaml:"max_runtime_secs" mapstructure:"max_runtime_secs"`
	StatusAddr     string `yaml:"status_addr" mapstructure:"status_addr"`
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
	v.SetEnvPrefix("AUTOBID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("redis.seen_ttl_hours", 72)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_secs", 45)
	v.SetDefault("browser.selector_timeout_secs", 15)
	v.SetDefault("platforms.enabled", []string{"workana", "freelancer"})
	v.SetDefault("platforms.max_concurrent", 2)
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("session.login_max_attempts", 2)
	v.SetDefault("session.login_backoff_secs", 2)
	v.SetDefault("session.screenshot_dir", "")
	v.SetDefault("textgen.base_url", "https://api.openai.com/v1")
	v.SetDefault("textgen.model", "gpt-4o-mini")
	v.SetDefault("textgen.max_tokens", 600)
	v.SetDefault("textgen.temperature", 0.7)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("proposal.provider", "textgen")
	v.SetDefault("proposal.fallback_enabled", true)
	v.SetDefault("notify.rate_per_minute", 20)
	v.SetDefault("notify.review_url", "")
	v.SetDefault("daemon.interval_secs", 300)
	v.SetDefault("daemon.status_addr", ":8085")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
