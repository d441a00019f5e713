package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	API        APIConfig        `mapstructure:"api"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket data and CLOB API configuration
type PolymarketConfig struct {
	DataAPIURL        string        `mapstructure:"data_api_url"`
	CLOBAPIURL        string        `mapstructure:"clob_api_url"`
	MarketBaseURL     string        `mapstructure:"market_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	TradeLimit        int           `mapstructure:"trade_limit"`
	HistoryFidelity   int           `mapstructure:"history_fidelity"` // minutes
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
}

// DashboardConfig holds query defaults and presentation limits
type DashboardConfig struct {
	Wallets           []string      `mapstructure:"wallets"`
	Hours             int           `mapstructure:"hours"`
	TradeDisplayLimit int           `mapstructure:"trade_display_limit"`
	TopN              int           `mapstructure:"top_n"`
	CashPlaceholder   float64       `mapstructure:"cash_placeholder"`
	StrictAddresses   bool          `mapstructure:"strict_addresses"`
	Timezone          string        `mapstructure:"timezone"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelegramConfig holds Telegram digest configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory, when present, is loaded into the
// environment first so POLYFOLIO_* overrides can live there.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("POLYFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.data_api_url", "https://data-api.polymarket.com")
	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.market_base_url", "https://polymarket.com/event/")
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay_base", "1s")
	v.SetDefault("polymarket.requests_per_second", 10.0)
	v.SetDefault("polymarket.burst", 10)
	v.SetDefault("polymarket.trade_limit", 500)
	v.SetDefault("polymarket.history_fidelity", 1)
	v.SetDefault("polymarket.max_concurrency", 8)

	// Dashboard defaults
	v.SetDefault("dashboard.hours", 24)
	v.SetDefault("dashboard.trade_display_limit", 25)
	v.SetDefault("dashboard.top_n", 10)
	v.SetDefault("dashboard.cash_placeholder", 50000.0)
	v.SetDefault("dashboard.strict_addresses", false)
	v.SetDefault("dashboard.timezone", "UTC")
	v.SetDefault("dashboard.refresh_interval", "0s")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "60s")
	v.SetDefault("api.shutdown_timeout", "10s")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.DataAPIURL == "" {
		return fmt.Errorf("polymarket.data_api_url is required")
	}
	if c.Polymarket.CLOBAPIURL == "" {
		return fmt.Errorf("polymarket.clob_api_url is required")
	}
	if c.Polymarket.Timeout <= 0 {
		return fmt.Errorf("polymarket.timeout must be positive")
	}
	if c.Polymarket.MaxRetries < 1 {
		return fmt.Errorf("polymarket.max_retries must be at least 1")
	}
	if c.Polymarket.RequestsPerSecond <= 0 {
		return fmt.Errorf("polymarket.requests_per_second must be positive")
	}
	if c.Polymarket.Burst < 1 {
		return fmt.Errorf("polymarket.burst must be at least 1")
	}
	if c.Polymarket.TradeLimit < 1 || c.Polymarket.TradeLimit > 500 {
		return fmt.Errorf("polymarket.trade_limit must be between 1 and 500")
	}
	if c.Polymarket.HistoryFidelity < 1 {
		return fmt.Errorf("polymarket.history_fidelity must be at least 1 minute")
	}
	if c.Polymarket.MaxConcurrency < 1 {
		return fmt.Errorf("polymarket.max_concurrency must be at least 1")
	}

	// Validate Dashboard config
	if c.Dashboard.TradeDisplayLimit < 1 {
		return fmt.Errorf("dashboard.trade_display_limit must be at least 1")
	}
	if c.Dashboard.TopN < 1 {
		return fmt.Errorf("dashboard.top_n must be at least 1")
	}
	if c.Dashboard.CashPlaceholder < 0 {
		return fmt.Errorf("dashboard.cash_placeholder must not be negative")
	}
	if _, err := time.LoadLocation(c.Dashboard.Timezone); err != nil {
		return fmt.Errorf("dashboard.timezone is invalid: %w", err)
	}
	if c.Dashboard.RefreshInterval != 0 && c.Dashboard.RefreshInterval < 1*time.Minute {
		return fmt.Errorf("dashboard.refresh_interval must be 0 or at least 1 minute")
	}

	// Validate API config
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			return fmt.Errorf("api.port must be between 1 and 65535")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Dashboard.RefreshInterval == 0 {
			return fmt.Errorf("dashboard.refresh_interval is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location returns the display timezone, falling back to UTC.
func (c DashboardConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
