// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Venues   VenuesConfig   `mapstructure:"venues"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name           string `mapstructure:"name"`
	Environment    string `mapstructure:"environment"`
	LogLevel       string `mapstructure:"log_level"`
	TestMode       bool   `mapstructure:"test_mode"`
	HealthPort     int    `mapstructure:"health_port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	TraceProvider  string `mapstructure:"trace_provider"`
}

// VenueCredentials holds one venue's connection parameters.
type VenueCredentials struct {
	APIKey      string        `mapstructure:"api_key"`
	APISecret   string        `mapstructure:"api_secret"`
	APIPassword string        `mapstructure:"api_password"`
	RateLimit   int           `mapstructure:"rate_limit"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// VenuesConfig holds the set of enabled venues and their credentials.
type VenuesConfig struct {
	Enabled     []string                    `mapstructure:"enabled"`
	Credentials map[string]VenueCredentials `mapstructure:"-"`
}

// TradingConfig holds cross-cutting trading parameters.
type TradingConfig struct {
	Symbols                       []string `mapstructure:"symbols"`
	MaxConcurrentTrades           int      `mapstructure:"max_concurrent_trades"`
	OrderBookDepth                int      `mapstructure:"order_book_depth"`
	OrderBookStalenessThresholdMs int      `mapstructure:"order_book_staleness_threshold_ms"`
	ShutdownBehavior              string   `mapstructure:"shutdown_behavior"`
}

// StalenessThreshold returns the order-book staleness threshold as a
// time.Duration.
func (c *TradingConfig) StalenessThreshold() time.Duration {
	return time.Duration(c.OrderBookStalenessThresholdMs) * time.Millisecond
}

// StrategyConfig holds the simple-arbitrage strategy engine's tunables.
type StrategyConfig struct {
	MinProfitPercent             float64       `mapstructure:"min_profit"`
	MaxTradeAmount               float64       `mapstructure:"max_trade_amount"`
	CheckInterval                time.Duration `mapstructure:"check_interval"`
	MaxSlippagePercent           float64       `mapstructure:"max_slippage"`
	PartialFillThresholdPercent  float64       `mapstructure:"partial_fill_threshold"`
	PriceTolerancePercent        float64       `mapstructure:"price_tolerance"`
	MaxProfitErosionPercent      float64       `mapstructure:"max_profit_erosion"`
	DynamicToleranceEnabled      bool          `mapstructure:"dynamic_tolerance"`
	ReservePercent               float64       `mapstructure:"reserve_percent"`
}

// ReservePercentDecimal returns ReservePercent as decimal.Decimal.
func (c *StrategyConfig) ReservePercentDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.ReservePercent)
}

// MinProfitPercentDecimal returns MinProfitPercent as decimal.Decimal.
func (c *StrategyConfig) MinProfitPercentDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitPercent)
}

// MaxTradeAmountDecimal returns MaxTradeAmount as decimal.Decimal.
func (c *StrategyConfig) MaxTradeAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxTradeAmount)
}

// LedgerConfig holds the trade state ledger's persistence settings.
type LedgerConfig struct {
	FilePath              string        `mapstructure:"file_path"`
	OrphanThreshold        time.Duration `mapstructure:"orphan_threshold"`
	ReservationTTL         time.Duration `mapstructure:"reservation_ttl"`
	RecentOrderTTL         time.Duration `mapstructure:"recent_order_ttl"`
	FeeCacheTTL            time.Duration `mapstructure:"fee_cache_ttl"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from an optional file plus environment
// variables, applying defaults and validating the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperror.External(apperror.CodeConfigurationError, "reading config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.External(apperror.CodeConfigurationError, "unmarshaling config", err)
	}

	cfg.Venues.Credentials = loadVenueCredentials(v, cfg.Venues.Enabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "SERVICE_NAME")
	v.BindEnv("app.environment", "ENVIRONMENT")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.test_mode", "TEST_MODE")
	v.BindEnv("app.health_port", "HEALTH_PORT")
	v.BindEnv("app.metrics_enabled", "METRICS_ENABLED")
	v.BindEnv("app.trace_provider", "TRACE_PROVIDER")

	v.BindEnv("venues.enabled", "ENABLED_EXCHANGES")

	v.BindEnv("trading.symbols", "TRADING_SYMBOLS")
	v.BindEnv("trading.max_concurrent_trades", "MAX_CONCURRENT_TRADES")
	v.BindEnv("trading.order_book_depth", "ORDER_BOOK_DEPTH")
	v.BindEnv("trading.order_book_staleness_threshold_ms", "ORDER_BOOK_STALENESS_THRESHOLD_MS")
	v.BindEnv("trading.shutdown_behavior", "SHUTDOWN_BEHAVIOR")

	v.BindEnv("strategy.min_profit", "SIMPLE_ARBITRAGE_MIN_PROFIT")
	v.BindEnv("strategy.max_trade_amount", "SIMPLE_ARBITRAGE_MAX_TRADE_AMOUNT")
	v.BindEnv("strategy.check_interval", "SIMPLE_ARBITRAGE_CHECK_INTERVAL")
	v.BindEnv("strategy.max_slippage", "SIMPLE_ARBITRAGE_MAX_SLIPPAGE")
	v.BindEnv("strategy.partial_fill_threshold", "SIMPLE_ARBITRAGE_PARTIAL_FILL_THRESHOLD")
	v.BindEnv("strategy.price_tolerance", "SIMPLE_ARBITRAGE_PRICE_TOLERANCE")
	v.BindEnv("strategy.max_profit_erosion", "SIMPLE_ARBITRAGE_MAX_PROFIT_EROSION")
	v.BindEnv("strategy.dynamic_tolerance", "SIMPLE_ARBITRAGE_DYNAMIC_TOLERANCE")
	v.BindEnv("strategy.reserve_percent", "SIMPLE_ARBITRAGE_RESERVE_PERCENT")

	v.BindEnv("telemetry.enabled", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.prometheus_port", "PROMETHEUS_PORT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arb-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.test_mode", true)
	v.SetDefault("app.health_port", 8081)
	v.SetDefault("app.metrics_enabled", false)
	v.SetDefault("app.trace_provider", "console")

	v.SetDefault("venues.enabled", []string{})

	v.SetDefault("trading.symbols", []string{"BTC/USDT"})
	v.SetDefault("trading.max_concurrent_trades", 3)
	v.SetDefault("trading.order_book_depth", 10)
	v.SetDefault("trading.order_book_staleness_threshold_ms", 500)
	v.SetDefault("trading.shutdown_behavior", "wait")

	v.SetDefault("strategy.min_profit", 0.5)
	v.SetDefault("strategy.max_trade_amount", 1000.0)
	v.SetDefault("strategy.check_interval", "5s")
	v.SetDefault("strategy.max_slippage", 0.5)
	v.SetDefault("strategy.partial_fill_threshold", 95.0)
	v.SetDefault("strategy.price_tolerance", 0.1)
	v.SetDefault("strategy.max_profit_erosion", 20.0)
	v.SetDefault("strategy.dynamic_tolerance", false)
	v.SetDefault("strategy.reserve_percent", 1.01)

	v.SetDefault("ledger.file_path", "data/trade-state.json")
	v.SetDefault("ledger.orphan_threshold", "24h")
	v.SetDefault("ledger.reservation_ttl", "60s")
	v.SetDefault("ledger.recent_order_ttl", "60s")
	v.SetDefault("ledger.fee_cache_ttl", "24h")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arb-engine")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// loadVenueCredentials reads {VENUE}_API_KEY/_SECRET/_PASSWORD/_RATE_LIMIT/_TIMEOUT
// for every enabled venue. Venue ids are upper-cased to build the env
// var prefix, e.g. venue "binance" -> BINANCE_API_KEY.
func loadVenueCredentials(v *viper.Viper, enabled []string) map[string]VenueCredentials {
	creds := make(map[string]VenueCredentials, len(enabled))
	for _, venue := range enabled {
		prefix := strings.ToUpper(venue)
		v.BindEnv(venue+".api_key", prefix+"_API_KEY")
		v.BindEnv(venue+".api_secret", prefix+"_API_SECRET")
		v.BindEnv(venue+".api_password", prefix+"_API_PASSWORD")
		v.BindEnv(venue+".rate_limit", prefix+"_RATE_LIMIT")
		v.BindEnv(venue+".timeout", prefix+"_TIMEOUT")

		v.SetDefault(venue+".rate_limit", 10)
		v.SetDefault(venue+".timeout", "10s")

		creds[venue] = VenueCredentials{
			APIKey:      v.GetString(venue + ".api_key"),
			APISecret:   v.GetString(venue + ".api_secret"),
			APIPassword: v.GetString(venue + ".api_password"),
			RateLimit:   v.GetInt(venue + ".rate_limit"),
			Timeout:     v.GetDuration(venue + ".timeout"),
		}
	}
	return creds
}

// Validate checks the loaded configuration for consistency.
func (c *Config) Validate() error {
	switch c.Trading.ShutdownBehavior {
	case "cancel", "wait", "force":
	default:
		return apperror.Validation(apperror.CodeConfigurationError,
			fmt.Sprintf("invalid trading.shutdown_behavior: %q, must be one of cancel|wait|force", c.Trading.ShutdownBehavior))
	}
	if len(c.Venues.Enabled) < 2 {
		return apperror.Validation(apperror.CodeConfigurationError, "at least two venues must be enabled to arbitrage between them")
	}
	if len(c.Trading.Symbols) == 0 {
		return apperror.Validation(apperror.CodeConfigurationError, "trading.symbols cannot be empty")
	}
	if c.Trading.MaxConcurrentTrades <= 0 {
		return apperror.Validation(apperror.CodeConfigurationError, "trading.max_concurrent_trades must be positive")
	}
	return nil
}
