// Package config defines all configuration for the arbitrage engine.
// Config is loaded from a YAML file (default: configs/config.yaml, override
// via EDGELORD_CONFIG) with sensitive fields overridable via EDGELORD_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/edgelord/edgelord/internal/cli"
	"github.com/edgelord/edgelord/internal/governor"
	"github.com/edgelord/edgelord/internal/pool"
	"github.com/edgelord/edgelord/internal/reconnect"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool             `mapstructure:"dry_run"`
	Wallet    WalletConfig     `mapstructure:"wallet"`
	API       APIConfig        `mapstructure:"api"`
	Pool      PoolConfig       `mapstructure:"pool"`
	Reconnect ReconnectConfig  `mapstructure:"reconnect"`
	Risk      RiskConfig       `mapstructure:"risk"`
	Strategy  StrategiesConfig `mapstructure:"strategy"`
	Governor  GovernorConfig   `mapstructure:"governor"`
	Inference InferenceConfig  `mapstructure:"inference"`
	Scanner   ScannerConfig    `mapstructure:"scanner"`
	Store     StoreConfig      `mapstructure:"store"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Dashboard DashboardConfig  `mapstructure:"dashboard"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds Polymarket API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the engine derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
	WSUserURL    string `mapstructure:"ws_user_url"`
	ApiKey       string `mapstructure:"api_key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`
}

// PoolConfig tunes the WebSocket connection pool's sharding, rotation, and
// health-check behavior. ToPoolConfig converts it to internal/pool.Config.
type PoolConfig struct {
	MaxConnections             int   `mapstructure:"max_connections"`
	SubscriptionsPerConnection int   `mapstructure:"subscriptions_per_connection"`
	ConnectionTTLSecs          int64 `mapstructure:"connection_ttl_secs"`
	PreemptiveReconnectSecs    int64 `mapstructure:"preemptive_reconnect_secs"`
	HealthCheckIntervalSecs    int64 `mapstructure:"health_check_interval_secs"`
	MaxSilentSecs              int64 `mapstructure:"max_silent_secs"`
	ChannelCapacity            int   `mapstructure:"channel_capacity"`
}

// ReconnectConfig tunes the exponential-backoff reconnecting stream and its
// circuit breaker. ToReconnectConfig converts it to internal/reconnect.Config.
type ReconnectConfig struct {
	InitialDelayMs           int64   `mapstructure:"initial_delay_ms"`
	MaxDelayMs               int64   `mapstructure:"max_delay_ms"`
	BackoffMultiplier        float64 `mapstructure:"backoff_multiplier"`
	MaxConsecutiveFailures   int     `mapstructure:"max_consecutive_failures"`
	CircuitBreakerCooldownMs int64   `mapstructure:"circuit_breaker_cooldown_ms"`
}

// ToPoolConfig builds an internal/pool.Config from the YAML-level fields,
// nesting the reconnect config the pool dials its connections with.
func (p PoolConfig) ToPoolConfig(r ReconnectConfig) pool.Config {
	return pool.Config{
		MaxConnections:             p.MaxConnections,
		SubscriptionsPerConnection: p.SubscriptionsPerConnection,
		ConnectionTTLSecs:          p.ConnectionTTLSecs,
		PreemptiveReconnectSecs:    p.PreemptiveReconnectSecs,
		HealthCheckIntervalSecs:    p.HealthCheckIntervalSecs,
		MaxSilentSecs:              p.MaxSilentSecs,
		ChannelCapacity:            p.ChannelCapacity,
		Reconnect:                  r.ToReconnectConfig(),
	}
}

// ToReconnectConfig builds an internal/reconnect.Config from the YAML-level fields.
func (r ReconnectConfig) ToReconnectConfig() reconnect.Config {
	return reconnect.Config{
		InitialDelayMs:           r.InitialDelayMs,
		MaxDelayMs:               r.MaxDelayMs,
		BackoffMultiplier:        r.BackoffMultiplier,
		MaxConsecutiveFailures:   r.MaxConsecutiveFailures,
		CircuitBreakerCooldownMs: r.CircuitBreakerCooldownMs,
	}
}

// RiskConfig sets the exposure and profit thresholds the risk gate enforces.
//
//   - MaxPositionPerMarket: max USD exposure reserved for a single opportunity.
//   - MaxTotalExposure: max combined current+pending USD exposure across markets.
//   - MinProfitThreshold: minimum expected profit an opportunity must clear.
//   - MaxSlippage: maximum fractional per-leg price drift tolerated right before submission.
//   - ExecutionTimeoutSecs: per-leg submission deadline.
type RiskConfig struct {
	MaxPositionPerMarket float64 `mapstructure:"max_position_per_market"`
	MaxTotalExposure     float64 `mapstructure:"max_total_exposure"`
	MinProfitThreshold   float64 `mapstructure:"min_profit_threshold"`
	MaxSlippage          float64 `mapstructure:"max_slippage"`
	ExecutionTimeoutSecs int     `mapstructure:"execution_timeout_secs"`
}

// SingleConditionConfig tunes the two-outcome arbitrage detector.
type SingleConditionConfig struct {
	MinEdge   float64 `mapstructure:"min_edge"`
	MinProfit float64 `mapstructure:"min_profit"`
}

// MarketRebalancingConfig tunes the N-outcome arbitrage detector.
type MarketRebalancingConfig struct {
	MinEdge   float64 `mapstructure:"min_edge"`
	MinProfit float64 `mapstructure:"min_profit"`
}

// CombinatorialConfig tunes the cluster-level Frank-Wolfe detector.
type CombinatorialConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	MinGap              float64 `mapstructure:"min_gap"`
	DebounceMs          int64   `mapstructure:"debounce_ms"`
	MaxClustersPerCycle int     `mapstructure:"max_clusters_per_cycle"`
}

// StrategiesConfig groups per-strategy tuning.
type StrategiesConfig struct {
	SingleCondition   SingleConditionConfig   `mapstructure:"single_condition"`
	MarketRebalancing MarketRebalancingConfig `mapstructure:"market_rebalancing"`
	Combinatorial     CombinatorialConfig     `mapstructure:"combinatorial"`
}

// GovernorConfig tunes the periodic subscription-scaling recommendation loop.
type GovernorConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	TargetP50Ms       float64 `mapstructure:"target_p50_ms"`
	TargetP95Ms       float64 `mapstructure:"target_p95_ms"`
	TargetP99Ms       float64 `mapstructure:"target_p99_ms"`
	MaxP99Ms          float64 `mapstructure:"max_p99_ms"`
	CheckIntervalSecs int64   `mapstructure:"check_interval_secs"`
	ExpandThreshold   float64 `mapstructure:"expand_threshold"`
	ContractThreshold float64 `mapstructure:"contract_threshold"`
	ExpandStep        int     `mapstructure:"expand_step"`
	ContractStep      int     `mapstructure:"contract_step"`
	CooldownSecs      int64   `mapstructure:"cooldown_secs"`
}

// ToGovernorConfig builds an internal/governor.Config from the YAML-level
// fields; the two structs are intentionally field-for-field identical.
func (g GovernorConfig) ToGovernorConfig() governor.Config {
	return governor.Config{
		Enabled:           g.Enabled,
		TargetP50Ms:       g.TargetP50Ms,
		TargetP95Ms:       g.TargetP95Ms,
		TargetP99Ms:       g.TargetP99Ms,
		MaxP99Ms:          g.MaxP99Ms,
		CheckIntervalSecs: g.CheckIntervalSecs,
		ExpandThreshold:   g.ExpandThreshold,
		ContractThreshold: g.ContractThreshold,
		ExpandStep:        g.ExpandStep,
		ContractStep:      g.ContractStep,
		CooldownSecs:      g.CooldownSecs,
	}
}

// InferenceConfig tunes the LLM-backed relation inference loop. APIKey is
// sensitive and is normally left blank in YAML, set via EDGELORD_LLM_API_KEY
// instead.
type InferenceConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	ScanIntervalSeconds int64   `mapstructure:"scan_interval_seconds"`
	BatchSize           int     `mapstructure:"batch_size"`
	Provider            string  `mapstructure:"provider"`
	BaseURL             string  `mapstructure:"base_url"`
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	Temperature         float64 `mapstructure:"temperature"`
	MaxTokens           int     `mapstructure:"max_tokens"`
}

// ScannerConfig controls how the engine discovers and filters tradeable markets.
// The scanner polls the Gamma API and ranks markets by opportunity score:
// score = spread * sqrt(volume24h) * min(liquidity/10000, 1).
type ScannerConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MinLiquidity   float64       `mapstructure:"min_liquidity"`
	MinVolume24h   float64       `mapstructure:"min_volume_24h"`
	MinSpread      float64       `mapstructure:"min_spread"`
	MaxEndDateDays int           `mapstructure:"max_end_date_days"`
	ExcludeSlugs   []string      `mapstructure:"exclude_slugs"`
}

// RateLimitConfig tunes the four token buckets guarding Polymarket's REST
// endpoints. Capacity is the 10-second burst allowance; RatePerSec is the
// smooth per-second refill rate (capacity/10 by default, matching
// Polymarket's published per-10s limits).
type RateLimitConfig struct {
	Order  TokenBucketConfig `mapstructure:"order"`
	Cancel TokenBucketConfig `mapstructure:"cancel"`
	Book   TokenBucketConfig `mapstructure:"book"`
	Gamma  TokenBucketConfig `mapstructure:"gamma"`
}

// TokenBucketConfig is the burst/refill pair for one rate-limited category.
type TokenBucketConfig struct {
	Capacity   float64 `mapstructure:"capacity"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
}

// StoreConfig sets where position and trade statistics are persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only status dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides. The file path
// defaults to configs/config.yaml, overridable via EDGELORD_CONFIG.
// Sensitive fields use env vars: EDGELORD_PRIVATE_KEY, EDGELORD_API_KEY,
// EDGELORD_API_SECRET, EDGELORD_PASSPHRASE, EDGELORD_LLM_API_KEY.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
		if p := os.Getenv("EDGELORD_CONFIG"); p != "" {
			path = p
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EDGELORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	raw, _ := os.ReadFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, cli.NewConfigError(fmt.Sprintf("read %s: %v", path, err), string(raw), 0).
			WithHelp("check the path (override with EDGELORD_CONFIG) and the YAML syntax")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cli.NewConfigError(fmt.Sprintf("unmarshal %s: %v", path, err), string(raw), 0).
			WithHelp("a field has the wrong type; compare against configs/config.yaml.example")
	}

	if key := os.Getenv("EDGELORD_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("EDGELORD_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("EDGELORD_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("EDGELORD_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if v := os.Getenv("EDGELORD_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	}
	if key := os.Getenv("EDGELORD_LLM_API_KEY"); key != "" {
		cfg.Inference.APIKey = key
	}

	return &cfg, nil
}

// Default returns a Config with working defaults for every section,
// suitable as a base before a YAML file overrides specific fields.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			MaxConnections:             10,
			SubscriptionsPerConnection: 500,
			ConnectionTTLSecs:          120,
			PreemptiveReconnectSecs:    30,
			HealthCheckIntervalSecs:    30,
			MaxSilentSecs:              60,
			ChannelCapacity:            10000,
		},
		Reconnect: ReconnectConfig{
			InitialDelayMs:           1000,
			MaxDelayMs:               60000,
			BackoffMultiplier:        2.0,
			MaxConsecutiveFailures:   10,
			CircuitBreakerCooldownMs: 300000,
		},
		Risk: RiskConfig{
			ExecutionTimeoutSecs: 30,
		},
		Governor: GovernorConfig{
			Enabled:           true,
			TargetP50Ms:       10,
			TargetP95Ms:       50,
			TargetP99Ms:       100,
			MaxP99Ms:          200,
			CheckIntervalSecs: 10,
			ExpandThreshold:   0.70,
			ContractThreshold: 1.20,
			ExpandStep:        50,
			ContractStep:      100,
			CooldownSecs:      60,
		},
		RateLimit: RateLimitConfig{
			Order:  TokenBucketConfig{Capacity: 350, RatePerSec: 50}, // 3500 per 10s window
			Cancel: TokenBucketConfig{Capacity: 300, RatePerSec: 30}, // 3000 per 10s window
			Book:   TokenBucketConfig{Capacity: 150, RatePerSec: 15}, // 1500 per 10s window
			Gamma:  TokenBucketConfig{Capacity: 100, RatePerSec: 10}, // 1000 per 10s window, scanner polling
		},
	}
}

// WithDefaults fills any zero-valued bucket in c with Default()'s values,
// so a YAML file that omits rate_limit entirely (or only sets some buckets)
// still produces a fully-populated RateLimitConfig.
func (c RateLimitConfig) WithDefaults() RateLimitConfig {
	d := Default().RateLimit
	fill := func(b, def TokenBucketConfig) TokenBucketConfig {
		if b.Capacity <= 0 || b.RatePerSec <= 0 {
			return def
		}
		return b
	}
	return RateLimitConfig{
		Order:  fill(c.Order, d.Order),
		Cancel: fill(c.Cancel, d.Cancel),
		Book:   fill(c.Book, d.Book),
		Gamma:  fill(c.Gamma, d.Gamma),
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return cli.NewWalletError("wallet.private_key is required").WithHelp("set EDGELORD_PRIVATE_KEY")
	}
	if c.Wallet.ChainID == 0 {
		return cli.NewWalletError("wallet.chain_id is required").WithHelp("137 for Polygon mainnet")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return cli.NewWalletError("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return cli.NewWalletError("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Pool.MaxConnections <= 0 {
		return fmt.Errorf("pool.max_connections must be > 0")
	}
	if c.Pool.SubscriptionsPerConnection <= 0 {
		return fmt.Errorf("pool.subscriptions_per_connection must be > 0")
	}
	if c.Risk.MaxPositionPerMarket <= 0 {
		return fmt.Errorf("risk.max_position_per_market must be > 0")
	}
	if c.Risk.MaxTotalExposure <= 0 {
		return fmt.Errorf("risk.max_total_exposure must be > 0")
	}
	if c.Risk.MaxTotalExposure < c.Risk.MaxPositionPerMarket {
		return fmt.Errorf("risk.max_total_exposure must be >= risk.max_position_per_market")
	}
	if c.Risk.ExecutionTimeoutSecs <= 0 {
		return fmt.Errorf("risk.execution_timeout_secs must be > 0")
	}
	if c.Strategy.Combinatorial.Enabled && c.Strategy.Combinatorial.MaxClustersPerCycle <= 0 {
		return fmt.Errorf("strategy.combinatorial.max_clusters_per_cycle must be > 0 when enabled")
	}
	return nil
}
