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
	Environment string            `yaml:"environment" mapstructure:"environment"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Webhook     WebhookConfig     `yaml:"webhook" mapstructure:"webhook"`
	Attribution AttributionConfig `yaml:"attribution" mapstructure:"attribution"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the Postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WebhookConfig holds the destination URL per funnel type plus a shared
// fallback. Resolved once at process start and injected into the dispatcher.
type WebhookConfig struct {
	AnnuityURL         string  `yaml:"annuity_url" mapstructure:"annuity_url"`
	FinalExpenseURL    string  `yaml:"final_expense_url" mapstructure:"final_expense_url"`
	ReverseMortgageURL string  `yaml:"reverse_mortgage_url" mapstructure:"reverse_mortgage_url"`
	FallbackURL        string  `yaml:"fallback_url" mapstructure:"fallback_url"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	Source             string  `yaml:"source" mapstructure:"source"`
}

// AttributionConfig bounds the certificate polling loop.
type AttributionConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	DelayMs     int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// IsProduction reports whether diagnostic detail should be withheld from
// API error responses.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("environment", "development")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	// URL keys need defaults registered so AutomaticEnv can see their
	// environment overrides.
	v.SetDefault("webhook.annuity_url", "")
	v.SetDefault("webhook.final_expense_url", "")
	v.SetDefault("webhook.reverse_mortgage_url", "")
	v.SetDefault("webhook.fallback_url", "")
	v.SetDefault("webhook.timeout_secs", 10)
	v.SetDefault("webhook.rate_limit_rps", 5)
	v.SetDefault("webhook.source", "website-quiz")
	v.SetDefault("attribution.max_attempts", 10)
	v.SetDefault("attribution.delay_ms", 500)

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
