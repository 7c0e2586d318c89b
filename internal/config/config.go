// Package config defines all configuration for the arbitrage daemon.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool             `mapstructure:"dry_run"`
	Feed     FeedConfig       `mapstructure:"feed"`
	Executor ExecutorConfig   `mapstructure:"executor"`
	Risk     RiskConfig       `mapstructure:"risk"`
	Strategy StrategySet      `mapstructure:"strategy"`
	Fanout   FanoutConfig     `mapstructure:"fanout"`
	Logging  LoggingConfig    `mapstructure:"logging"`
	HTTP     HTTPConfig       `mapstructure:"http"`
	Pairs    []MarketPairSpec `mapstructure:"pairs"`
}

// MarketPairSpec is one explicitly configured market pair to register with
// the Market Store at startup. Market discovery is out of scope (spec §1);
// pairs are supplied explicitly rather than discovered dynamically.
type MarketPairSpec struct {
	MarketID string `mapstructure:"market_id"`
	YesToken string `mapstructure:"yes_token"`
	NoToken  string `mapstructure:"no_token"`
	Question string `mapstructure:"question"`
}

// FeedConfig points at the WebSocket market-data source.
type FeedConfig struct {
	URL string `mapstructure:"url"`
}

// ExecutorConfig holds the REST endpoint and signing material used to place
// orders. SigningKey signs the canonical order message (spec §6); it is
// never required in DryRun mode.
type ExecutorConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	APISecret    string  `mapstructure:"api_secret"`
	SigningKey   string  `mapstructure:"signing_key"`
	PaperFeeRate float64 `mapstructure:"paper_fee_rate"`
}

// RiskConfig sets the Risk Gate's hard limits.
type RiskConfig struct {
	MaxPosition               float64 `mapstructure:"max_position"`
	MaxNotional               float64 `mapstructure:"max_notional"`
	MaxDailyLoss              float64 `mapstructure:"max_daily_loss"`
	CancelOnPartialArbFailure bool    `mapstructure:"cancel_on_partial_arb_failure"`
}

// StrategySet configures every strategy the engine may run.
type StrategySet struct {
	SumTo100 SumTo100Config `mapstructure:"sum_to_100"`
	Clipper  ClipperConfig  `mapstructure:"clipper"`
	Sniper   SniperConfig   `mapstructure:"sniper"`
}

// SumTo100Config mirrors internal/strategy.SumTo100Config.
type SumTo100Config struct {
	Enabled      bool    `mapstructure:"enabled"`
	MinEdge      float64 `mapstructure:"min_edge"`
	MaxPosition  float64 `mapstructure:"max_position"`
	MaxNotional  float64 `mapstructure:"max_notional"`
	MinLiquidity float64 `mapstructure:"min_liquidity"`
	FeeRate      float64 `mapstructure:"fee_rate"`
	PaperTrading bool    `mapstructure:"paper_trading"`
	MaxBookAgeMs int64   `mapstructure:"max_book_age_ms"`
}

// ClipperConfig mirrors internal/strategy.ClipperConfig.
type ClipperConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	MinProfit   float64 `mapstructure:"min_profit"`
	MaxPosition float64 `mapstructure:"max_position"`
	MaxNotional float64 `mapstructure:"max_notional"`
}

// SniperConfig mirrors internal/strategy.SniperConfig.
type SniperConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	MinPrice  float64 `mapstructure:"min_price"`
	MaxPrice  float64 `mapstructure:"max_price"`
	MinProfit float64 `mapstructure:"min_profit"`
	OrderSize float64 `mapstructure:"order_size"`
}

// FanoutConfig configures the notifier and persistent-store sinks. An empty
// StoreURL or NotifierWebhook disables that sink. The broadcast hub has no
// setting here and is always on.
type FanoutConfig struct {
	StoreURL        string `mapstructure:"store_url"`
	NotifierWebhook string `mapstructure:"notifier_webhook"`
	NotifyOrders    bool   `mapstructure:"notify_orders"`
	NotifyRisk      bool   `mapstructure:"notify_risk"`
	NotifyErrors    bool   `mapstructure:"notify_errors"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig controls the /health and /metrics surface.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_EXECUTOR_API_KEY, POLY_EXECUTOR_API_SECRET,
// POLY_EXECUTOR_SIGNING_KEY, POLY_FANOUT_NOTIFIER_WEBHOOK.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("dry_run", true)
	v.SetDefault("http.addr", ":9090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("POLY_EXECUTOR_API_KEY"); key != "" {
		cfg.Executor.APIKey = key
	}
	if secret := os.Getenv("POLY_EXECUTOR_API_SECRET"); secret != "" {
		cfg.Executor.APISecret = secret
	}
	if key := os.Getenv("POLY_EXECUTOR_SIGNING_KEY"); key != "" {
		cfg.Executor.SigningKey = key
	}
	if hook := os.Getenv("POLY_FANOUT_NOTIFIER_WEBHOOK"); hook != "" {
		cfg.Fanout.NotifierWebhook = hook
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, collecting every
// violation into one aggregated error rather than failing on the first
// (REDESIGN: the teacher's config.Validate returns on the first error it
// finds, which forces a fix-one-rerun-fix-next cycle for operators).
func (c *Config) Validate() error {
	var errs []string

	if c.Feed.URL == "" {
		errs = append(errs, "feed.url is required")
	}
	if c.Executor.BaseURL == "" {
		errs = append(errs, "executor.base_url is required")
	}
	if !c.DryRun && c.Executor.SigningKey == "" {
		errs = append(errs, "executor.signing_key is required when dry_run is false")
	}
	if c.Risk.MaxPosition <= 0 {
		errs = append(errs, "risk.max_position must be > 0")
	}
	if c.Risk.MaxNotional <= 0 {
		errs = append(errs, "risk.max_notional must be > 0")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk.max_daily_loss must be > 0")
	}
	if c.Strategy.SumTo100.Enabled && c.Strategy.SumTo100.MinEdge <= 0 {
		errs = append(errs, "strategy.sum_to_100.min_edge must be > 0 when enabled")
	}
	if c.Strategy.Clipper.Enabled && c.Strategy.Clipper.MinProfit <= 0 {
		errs = append(errs, "strategy.clipper.min_profit must be > 0 when enabled")
	}
	if c.Strategy.Sniper.Enabled && c.Strategy.Sniper.MinProfit <= 0 {
		errs = append(errs, "strategy.sniper.min_profit must be > 0 when enabled")
	}
	if !c.Strategy.SumTo100.Enabled && !c.Strategy.Clipper.Enabled && !c.Strategy.Sniper.Enabled {
		errs = append(errs, "at least one strategy must be enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
