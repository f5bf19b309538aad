// Package governor periodically evaluates latency and resource pressure
// and recommends expanding, holding, or contracting the active
// subscription count. A cooldown gate suppresses oscillation between
// consecutive non-Hold recommendations.
package governor

import (
	"time"
)

// ScalingRecommendation is a closed sum type over the governor's output.
type ScalingRecommendation interface {
	scalingRecommendation()
}

// Expand recommends growing the active subscription count to SuggestedCount.
type Expand struct {
	SuggestedCount int
}

func (Expand) scalingRecommendation() {}

// Hold recommends no change.
type Hold struct{}

func (Hold) scalingRecommendation() {}

// Contract recommends shrinking the active subscription count to SuggestedCount.
type Contract struct {
	SuggestedCount int
}

func (Contract) scalingRecommendation() {}

// Config tunes the governor's thresholds.
type Config struct {
	Enabled           bool
	TargetP50Ms       float64
	TargetP95Ms       float64
	TargetP99Ms       float64
	MaxP99Ms          float64
	CheckIntervalSecs int64
	ExpandThreshold   float64
	ContractThreshold float64
	ExpandStep        int
	ContractStep      int
	CooldownSecs      int64
}

// DefaultConfig returns working governor defaults: scale out while p95
// stays under 50ms and utilization under 70%, scale in past a 200ms p99
// or 120% utilization, with a one-minute cooldown between moves.
func DefaultConfig() Config {
	return Config{
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
	}
}

// LatencySource reports observed latency percentiles, in milliseconds.
type LatencySource interface {
	Percentiles() (p50, p95, p99 float64)
}

// UtilizationSource reports current resource utilization as a fraction of
// budget (1.0 == fully used).
type UtilizationSource interface {
	Utilization() float64
}

// Governor evaluates scaling recommendations on a fixed interval, gated by
// a cooldown that prevents oscillation between consecutive non-Hold
// recommendations.
type Governor struct {
	cfg         Config
	latency     LatencySource
	utilization UtilizationSource

	lastNonHoldAt time.Time
}

// New constructs a Governor.
func New(cfg Config, latency LatencySource, utilization UtilizationSource) *Governor {
	return &Governor{cfg: cfg, latency: latency, utilization: utilization}
}

// Evaluate computes a scaling recommendation as of now, honoring the
// cooldown gate against the previous non-Hold recommendation.
func (g *Governor) Evaluate(now time.Time) ScalingRecommendation {
	_, p95, p99 := g.latency.Percentiles()
	util := g.utilization.Utilization()

	var rec ScalingRecommendation
	switch {
	case p99 > g.cfg.MaxP99Ms || util > g.cfg.ContractThreshold:
		rec = Contract{SuggestedCount: g.cfg.ContractStep}
	case p95 < g.cfg.TargetP95Ms && util < g.cfg.ExpandThreshold:
		rec = Expand{SuggestedCount: g.cfg.ExpandStep}
	default:
		rec = Hold{}
	}

	if _, isHold := rec.(Hold); isHold {
		return rec
	}

	if !g.lastNonHoldAt.IsZero() {
		cooldown := time.Duration(g.cfg.CooldownSecs) * time.Second
		if now.Sub(g.lastNonHoldAt) < cooldown {
			return Hold{}
		}
	}
	g.lastNonHoldAt = now
	return rec
}
