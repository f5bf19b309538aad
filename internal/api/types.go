package api

import (
	"time"

	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/pkg/ids"
)

// DashboardSnapshot represents the complete read-only dashboard state sent
// on connect and rebuilt on every snapshot request.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Discovered markets, best score first.
	Markets []MarketStatus `json:"markets"`

	// Open and partially-filled positions.
	Positions []PositionSnapshot `json:"positions"`

	Risk     RiskSnapshot  `json:"risk"`
	Pool     PoolSnapshot  `json:"pool"`
	Scanner  ScannerInfo   `json:"scanner"`
	Config   ConfigSummary `json:"config"`
}

// MarketStatus represents one discovered market and its priority score.
type MarketStatus struct {
	MarketID     string   `json:"market_id"`
	Question     string   `json:"question"`
	Outcomes     []string `json:"outcomes"`
	Composite    float64  `json:"composite_score"`
	Liquidity    float64  `json:"liquidity_factor"`
	Spread       float64  `json:"spread_factor"`
	Activity     float64  `json:"activity_factor"`
	OutcomeCount float64  `json:"outcome_count_factor"`
	Opportunity  float64  `json:"opportunity_factor"`
}

// PositionLeg is one leg of a position's multi-leg trade.
type PositionLeg struct {
	TokenID  string  `json:"token_id"`
	AskPrice float64 `json:"ask_price"`
}

// PositionSnapshot represents one tracked position and its lifecycle state.
type PositionSnapshot struct {
	ID               ids.PositionId `json:"id"`
	MarketID         string         `json:"market_id"`
	Legs             []PositionLeg  `json:"legs"`
	EntryCost        float64        `json:"entry_cost"`
	GuaranteedPayout float64        `json:"guaranteed_payout"`
	ExpectedProfit   float64        `json:"expected_profit"`
	OpenedAt         time.Time      `json:"opened_at"`

	Status      string   `json:"status"` // "open", "partial_fill", "closed"
	FilledLegs  []string `json:"filled_legs,omitempty"`
	MissingLegs []string `json:"missing_legs,omitempty"`
	ClosedPnL   *float64 `json:"closed_pnl,omitempty"`
}

// RiskSnapshot reports the risk gate's current exposure and breaker state.
type RiskSnapshot struct {
	TotalExposure    float64 `json:"total_exposure"`
	PendingExposure  float64 `json:"pending_exposure"`
	PendingCount     int     `json:"pending_count"`
	MaxPositionLimit float64 `json:"max_position_per_market"`
	MaxTotalLimit    float64 `json:"max_total_exposure"`
	ExposurePct      float64 `json:"exposure_pct"` // (total+pending) / MaxTotalLimit

	BreakerActive bool   `json:"breaker_active"`
	BreakerReason string `json:"breaker_reason,omitempty"`
}

// PoolSnapshot reports the market-data connection pool's health counters.
type PoolSnapshot struct {
	ActiveConnections int64 `json:"active_connections"`
	TotalRotations    int64 `json:"total_rotations"`
	TotalRestarts     int64 `json:"total_restarts"`
	EventsDropped     int64 `json:"events_dropped"`
}

// ScannerInfo reports the market discovery scanner's most recent pass.
type ScannerInfo struct {
	LastScanTime    time.Time `json:"last_scan_time"`
	MarketsScanned  int       `json:"markets_scanned"`
	MarketsFiltered int       `json:"markets_filtered"`
	MarketsSelected int       `json:"markets_selected"`
}

// ConfigSummary represents the running configuration, for display only.
type ConfigSummary struct {
	DryRun bool `json:"dry_run"`

	// Risk
	MaxPositionPerMarket float64 `json:"max_position_per_market"`
	MaxTotalExposure     float64 `json:"max_total_exposure"`
	MinProfitThreshold   float64 `json:"min_profit_threshold"`
	MaxSlippage          float64 `json:"max_slippage"`

	// Scanner
	ScannerPollInterval string  `json:"scanner_poll_interval"`
	MinLiquidity        float64 `json:"min_liquidity"`
	MinVolume24h        float64 `json:"min_volume_24h"`
	MinSpread           float64 `json:"min_spread"`
	MaxEndDateDays      int     `json:"max_end_date_days"`

	// Strategies
	CombinatorialEnabled bool `json:"combinatorial_enabled"`

	// Governor
	GovernorEnabled bool `json:"governor_enabled"`

	// Inference
	InferenceEnabled bool   `json:"inference_enabled"`
	InferenceModel   string `json:"inference_model,omitempty"`
}

// NewConfigSummary builds a ConfigSummary from the running config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		DryRun: cfg.DryRun,

		MaxPositionPerMarket: cfg.Risk.MaxPositionPerMarket,
		MaxTotalExposure:     cfg.Risk.MaxTotalExposure,
		MinProfitThreshold:   cfg.Risk.MinProfitThreshold,
		MaxSlippage:          cfg.Risk.MaxSlippage,

		ScannerPollInterval: cfg.Scanner.PollInterval.String(),
		MinLiquidity:        cfg.Scanner.MinLiquidity,
		MinVolume24h:        cfg.Scanner.MinVolume24h,
		MinSpread:           cfg.Scanner.MinSpread,
		MaxEndDateDays:      cfg.Scanner.MaxEndDateDays,

		CombinatorialEnabled: cfg.Strategy.Combinatorial.Enabled,

		GovernorEnabled: cfg.Governor.Enabled,

		InferenceEnabled: cfg.Inference.Enabled,
		InferenceModel:   cfg.Inference.Model,
	}
}
