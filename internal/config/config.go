package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Drafts    DraftsConfig    `mapstructure:"drafts"`
	Stages    []int           `mapstructure:"stages"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Window    WindowConfig    `mapstructure:"window"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// StoreConfig holds invoice workbook configuration
type StoreConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

// TemplatesConfig holds reminder template configuration
type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

// DraftsConfig holds drafts API connection and retry policy
type DraftsConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIToken    string        `mapstructure:"api_token"`
	Sender      string        `mapstructure:"sender"`
	MaxRetries  int           `mapstructure:"max_retries"`
	InitialWait time.Duration `mapstructure:"retry_initial_wait"`
}

// LedgerConfig holds the local run-history database settings
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WindowConfig holds the business-hours window (24-hour clock). Runs
// outside the window warn but proceed.
type WindowConfig struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("store.path", "data/invoices.xlsx")
	viper.SetDefault("store.sheet", "Invoices")

	viper.SetDefault("templates.dir", "templates")

	viper.SetDefault("drafts.max_retries", 4)
	viper.SetDefault("drafts.retry_initial_wait", time.Second)

	viper.SetDefault("stages", []int{7, 14, 21, 28, 35, 42})

	viper.SetDefault("ledger.enabled", true)
	viper.SetDefault("ledger.path", "data/runs.db")

	viper.SetDefault("window.start_hour", 8)
	viper.SetDefault("window.end_hour", 18)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "console")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("drafts.base_url", "DRAFTS_API_URL")
	viper.BindEnv("drafts.api_token", "DRAFTS_API_TOKEN")
	viper.BindEnv("drafts.sender", "DRAFTS_SENDER")
	viper.BindEnv("store.path", "INVOICE_WORKBOOK_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.Sheet == "" {
		return fmt.Errorf("store.sheet is required")
	}
	if c.Templates.Dir == "" {
		return fmt.Errorf("templates.dir is required")
	}
	if c.Drafts.BaseURL == "" {
		return fmt.Errorf("drafts.base_url is required")
	}
	if c.Drafts.Sender == "" {
		return fmt.Errorf("drafts.sender is required")
	}
	if c.Drafts.MaxRetries < 0 {
		return fmt.Errorf("drafts.max_retries cannot be negative")
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("stages cannot be empty")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required when the ledger is enabled")
	}
	if c.Window.StartHour < 0 || c.Window.EndHour > 24 || c.Window.StartHour >= c.Window.EndHour {
		return fmt.Errorf("window hours must satisfy 0 <= start < end <= 24")
	}
	return nil
}

// WithinBusinessHours reports whether now falls inside the configured
// send window.
func (c *Config) WithinBusinessHours(now time.Time) bool {
	hour := now.Hour()
	return hour >= c.Window.StartHour && hour < c.Window.EndHour
}
