// Package config defines all configuration for the arbitrage engine.
// Config is loaded from a YAML file (default: configs/config.yaml),
// pre-seeded from a .env file if present, with sensitive fields
// overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun  bool          `mapstructure:"dry_run"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	API     APIConfig     `mapstructure:"api"`
	Trading TradingConfig `mapstructure:"trading"`
	Feed    FeedConfig    `mapstructure:"feed"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Market  MarketConfig  `mapstructure:"market"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs orders and L1 (EIP-712) auth headers.
// FunderAddress is the on-chain address that funds orders (may differ
// from the signer if trading through a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds the venue's REST/WS base URLs and optional
// pre-derived L2 credentials. The engine does not derive missing
// credentials itself: if ApiKey/Secret/Passphrase are empty, the
// L2-authenticated requests (orders, cancels, balance, order status)
// are sent with an empty API key and passphrase.
type APIConfig struct {
	CLOBBaseURL string `mapstructure:"clob_base_url"`
	WSBaseURL   string `mapstructure:"ws_base_url"`
	ApiKey      string `mapstructure:"api_key"`
	Secret      string `mapstructure:"secret"`
	Passphrase  string `mapstructure:"passphrase"`
}

// TradingConfig is the opportunity-detection and execution contract:
// the only knobs the core arbitrage logic reads.
//
//   - TargetPairCost: combined UP+DOWN ask cost below which a pair is
//     considered an arbitrage (e.g. 0.991).
//   - OrderSize: shares per leg (must be >= 5).
//   - OrderType: FOK, FAK, or GTC.
//   - BalanceMargin: safety headroom over the computed cost required
//     before submitting (1.2 = 20% extra).
//   - SimBalance: starting balance when DryRun is true.
//   - CooldownSeconds: minimum time between trade executions.
type TradingConfig struct {
	TargetPairCost  decimal.Decimal `mapstructure:"target_pair_cost"`
	OrderSize       decimal.Decimal `mapstructure:"order_size"`
	OrderType       string          `mapstructure:"order_type"`
	BalanceMargin   decimal.Decimal `mapstructure:"balance_margin"`
	SimBalance      decimal.Decimal `mapstructure:"sim_balance"`
	CooldownSeconds int64           `mapstructure:"cooldown_seconds"`
}

// FeedConfig tunes the market feed's reconnect and liveness behavior.
type FeedConfig struct {
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	OrderTimeout      time.Duration `mapstructure:"order_timeout"`
	OrderPollInterval time.Duration `mapstructure:"order_poll_interval"`
}

// HTTPConfig tunes the REST client's connection pool and timeouts.
type HTTPConfig struct {
	PoolSize       int           `mapstructure:"pool_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MarketConfig optionally pins a specific market, bypassing discovery.
type MarketConfig struct {
	ForcedSlug string `mapstructure:"forced_slug"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// defaults mirrors the original Rust implementation's field defaults:
// target_pair_cost=0.991, order_size=5, order_type=FOK,
// balance_margin=1.2, dry_run=true, sim_balance=100, cooldown=10s.
func defaults(v *viper.Viper) {
	v.SetDefault("dry_run", true)
	v.SetDefault("wallet.chain_id", 137)
	v.SetDefault("wallet.signature_type", 0)
	v.SetDefault("api.clob_base_url", "https://clob.polymarket.com")
	v.SetDefault("api.ws_base_url", "wss://ws-subscriptions-clob.polymarket.com")
	v.SetDefault("trading.target_pair_cost", "0.991")
	v.SetDefault("trading.order_size", "5")
	v.SetDefault("trading.order_type", "FOK")
	v.SetDefault("trading.balance_margin", "1.2")
	v.SetDefault("trading.sim_balance", "100")
	v.SetDefault("trading.cooldown_seconds", 10)
	v.SetDefault("feed.reconnect_max_delay", "30s")
	v.SetDefault("feed.heartbeat_interval", "30s")
	v.SetDefault("feed.order_timeout", "3s")
	v.SetDefault("feed.order_poll_interval", "100ms")
	v.SetDefault("http.pool_size", 10)
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads config from a YAML file, pre-seeded with a .env file if
// present, with env var overrides. Sensitive fields use env vars:
// POLY_PRIVATE_KEY, POLY_API_KEY, POLY_API_SECRET, POLY_PASSPHRASE.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	decodeHooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		decimalDecodeHook,
	))
	if err := v.Unmarshal(&cfg, decodeHooks); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if v := os.Getenv("POLY_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	} else if v == "false" || v == "0" {
		cfg.DryRun = false
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.API.WSBaseURL == "" {
		return fmt.Errorf("api.ws_base_url is required")
	}
	if c.Trading.OrderSize.LessThan(decimal.NewFromInt(5)) {
		return fmt.Errorf("trading.order_size must be >= 5")
	}
	if !c.Trading.TargetPairCost.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("trading.target_pair_cost must be < 1.0")
	}
	switch c.Trading.OrderType {
	case "FOK", "FAK", "GTC":
	default:
		return fmt.Errorf("trading.order_type must be one of: FOK, FAK, GTC")
	}
	if !c.Trading.BalanceMargin.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("trading.balance_margin must be >= 1.0")
	}
	return nil
}
