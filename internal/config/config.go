// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig                 `yaml:"app"`
	Exchanges   map[string]ExchangeConfig `yaml:"exchanges"`
	Grid        GridConfig                `yaml:"grid"`
	MetricsSink MetricsSinkConfig         `yaml:"metrics_sink"`
	System      SystemConfig              `yaml:"system"`
	Timing      TimingConfig              `yaml:"timing"`
	Concurrency ConcurrencyConfig         `yaml:"concurrency"`
	Telemetry   TelemetryConfig           `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Venue      string `yaml:"venue"`       // gateway to instantiate (binance, mock)
	VenueName  string `yaml:"venue_name"`  // passed through to metrics sink records
	AccountTag string `yaml:"account_tag"` // passed through to metrics sink records
}

// ExchangeConfig contains exchange-specific configuration
type ExchangeConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"` // Optional override for API URL
}

// GridConfig contains the grid parameters. Immutable after startup.
type GridConfig struct {
	Symbol         string  `yaml:"symbol"`
	SideBias       string  `yaml:"side_bias"` // long (ascending) or short (descending)
	Spread         float64 `yaml:"spread"`    // fractional rung step, e.g. 0.0005 = 5bp
	Notional       float64 `yaml:"notional"`  // quote currency per rung
	NumOrders      int     `yaml:"num_orders"`
	PriceDecimals  int32   `yaml:"price_decimals"`
	AmountDecimals int32   `yaml:"amount_decimals"`
	ContractSize   float64 `yaml:"contract_size"`
}

// MetricsSinkConfig contains the external metrics sink settings
type MetricsSinkConfig struct {
	Path            string `yaml:"path"` // SQLite database path
	IntervalSeconds int    `yaml:"interval_seconds"`
	WarmupSeconds   int    `yaml:"warmup_seconds"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// TimingConfig contains timing-related settings
type TimingConfig struct {
	RebalanceIntervalMs     int `yaml:"rebalance_interval_ms"`
	RebalanceWarmupSeconds  int `yaml:"rebalance_warmup_seconds"`
	RebalanceSettleDelayMs  int `yaml:"rebalance_settle_delay_ms"`
	SeedPollIntervalMs      int `yaml:"seed_poll_interval_ms"`
	StatsLogIntervalSeconds int `yaml:"stats_log_interval_seconds"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	OrderPoolSize   int `yaml:"order_pool_size"`
	OrderPoolBuffer int `yaml:"order_pool_buffer"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Grid.ContractSize == 0 {
		c.Grid.ContractSize = 1.0
	}
	if c.MetricsSink.IntervalSeconds == 0 {
		c.MetricsSink.IntervalSeconds = 300
	}
	if c.MetricsSink.WarmupSeconds == 0 {
		c.MetricsSink.WarmupSeconds = 300
	}
	if c.Timing.RebalanceIntervalMs == 0 {
		c.Timing.RebalanceIntervalMs = 1000
	}
	if c.Timing.RebalanceWarmupSeconds == 0 {
		c.Timing.RebalanceWarmupSeconds = 10
	}
	if c.Timing.RebalanceSettleDelayMs == 0 {
		c.Timing.RebalanceSettleDelayMs = 100
	}
	if c.Timing.SeedPollIntervalMs == 0 {
		c.Timing.SeedPollIntervalMs = 200
	}
	if c.Timing.StatsLogIntervalSeconds == 0 {
		c.Timing.StatsLogIntervalSeconds = 60
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
}

// Validate performs comprehensive validation of the configuration.
// Misconfiguration is a fatal startup error, never a runtime condition.
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAppConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateGridConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateMetricsSinkConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	validVenues := []string{"binance", "mock"}

	if c.App.Venue == "" {
		return ValidationError{
			Field:   "app.venue",
			Message: "venue is required",
		}
	}

	if !contains(validVenues, c.App.Venue) {
		return ValidationError{
			Field:   "app.venue",
			Value:   c.App.Venue,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validVenues, ", ")),
		}
	}

	if c.App.Venue == "mock" {
		return nil
	}

	exchange, exists := c.Exchanges[c.App.Venue]
	if !exists {
		return ValidationError{
			Field:   "app.venue",
			Value:   c.App.Venue,
			Message: "exchange configuration not found in exchanges section",
		}
	}
	if exchange.APIKey == "" {
		return ValidationError{
			Field:   fmt.Sprintf("exchanges.%s.api_key", c.App.Venue),
			Message: "API key is required",
		}
	}
	if exchange.SecretKey == "" {
		return ValidationError{
			Field:   fmt.Sprintf("exchanges.%s.secret_key", c.App.Venue),
			Message: "secret key is required",
		}
	}

	return nil
}

func (c *Config) validateGridConfig() error {
	if c.Grid.Symbol == "" {
		return ValidationError{
			Field:   "grid.symbol",
			Message: "grid symbol is required",
		}
	}

	if c.Grid.SideBias != "long" && c.Grid.SideBias != "short" {
		return ValidationError{
			Field:   "grid.side_bias",
			Value:   c.Grid.SideBias,
			Message: "must be one of: long, short",
		}
	}

	if c.Grid.Spread <= 0 || c.Grid.Spread >= 1 {
		return ValidationError{
			Field:   "grid.spread",
			Value:   c.Grid.Spread,
			Message: "spread must be a fraction in (0, 1)",
		}
	}

	if c.Grid.Notional <= 0 {
		return ValidationError{
			Field:   "grid.notional",
			Value:   c.Grid.Notional,
			Message: "notional must be positive",
		}
	}

	if c.Grid.NumOrders <= 0 {
		return ValidationError{
			Field:   "grid.num_orders",
			Value:   c.Grid.NumOrders,
			Message: "num_orders must be positive",
		}
	}

	if c.Grid.PriceDecimals < 0 || c.Grid.AmountDecimals < 0 {
		return ValidationError{
			Field:   "grid.price_decimals",
			Value:   c.Grid.PriceDecimals,
			Message: "rounding precision must be non-negative",
		}
	}

	if c.Grid.ContractSize <= 0 {
		return ValidationError{
			Field:   "grid.contract_size",
			Value:   c.Grid.ContractSize,
			Message: "contract_size must be positive",
		}
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateMetricsSinkConfig() error {
	if c.MetricsSink.Path == "" {
		return ValidationError{
			Field:   "metrics_sink.path",
			Message: "metrics sink path is required",
		}
	}
	return nil
}

// GetVenueConfig returns the configuration for the configured venue
func (c *Config) GetVenueConfig() (*ExchangeConfig, error) {
	exchange, exists := c.Exchanges[c.App.Venue]
	if !exists {
		return nil, fmt.Errorf("exchange configuration not found for: %s", c.App.Venue)
	}
	return &exchange, nil
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c
	configCopy.Exchanges = make(map[string]ExchangeConfig, len(c.Exchanges))
	for name, exchange := range c.Exchanges {
		exchange.APIKey = maskString(exchange.APIKey)
		exchange.SecretKey = maskString(exchange.SecretKey)
		configCopy.Exchanges[name] = exchange
	}

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		App: AppConfig{
			Venue:      "mock",
			VenueName:  "mock",
			AccountTag: "test",
		},
		Grid: GridConfig{
			Symbol:         "BTCUSDT",
			SideBias:       "long",
			Spread:         0.005,
			Notional:       1000.0,
			NumOrders:      10,
			PriceDecimals:  2,
			AmountDecimals: 2,
			ContractSize:   0.01,
		},
		MetricsSink: MetricsSinkConfig{
			Path: "grid_metrics.db",
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: false,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
	cfg.applyDefaults()
	return cfg
}
