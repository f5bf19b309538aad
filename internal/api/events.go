package api

import (
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// DashboardEvent is the wrapper for every event pushed to dashboard clients.
type DashboardEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	MarketID  string      `json:"market_id,omitempty"`
	Data      interface{} `json:"data"`
}

const (
	EventOpportunityDetected     = "opportunity_detected"
	EventExecutionCompleted      = "execution_completed"
	EventRiskRejected            = "risk_rejected"
	EventCircuitBreakerActivated = "circuit_breaker_activated"
	EventCircuitBreakerReset     = "circuit_breaker_reset"
	EventDailySummary            = "daily_summary"
	EventRelationsDiscovered     = "relations_discovered"
	EventSnapshot                = "snapshot"
)

// OpportunityDetectedEvent reports a detector finding a guaranteed-profit
// combination of legs, before the risk gate has seen it.
type OpportunityDetectedEvent struct {
	MarketID       string        `json:"market_id"`
	Question       string        `json:"question"`
	StrategyName   string        `json:"strategy_name"`
	Legs           []PositionLeg `json:"legs"`
	TotalCost      float64       `json:"total_cost"`
	Payout         float64       `json:"payout"`
	Edge           float64       `json:"edge"`
	Volume         float64       `json:"volume"`
	ExpectedProfit float64       `json:"expected_profit"`
}

// NewOpportunityDetectedEvent builds the event payload from a detected
// opportunity.
func NewOpportunityDetectedEvent(opp domain.Opportunity) OpportunityDetectedEvent {
	legs := make([]PositionLeg, len(opp.Legs))
	for i, l := range opp.Legs {
		price, _ := l.AskPrice.Float64()
		legs[i] = PositionLeg{TokenID: string(l.TokenID), AskPrice: price}
	}
	totalCost, _ := opp.TotalCost().Float64()
	payout, _ := opp.Payout.Float64()
	edge, _ := opp.Edge().Float64()
	volume, _ := opp.Volume.Float64()
	profit, _ := opp.ExpectedProfit().Float64()

	return OpportunityDetectedEvent{
		MarketID:       string(opp.MarketID),
		Question:       opp.Question,
		StrategyName:   opp.StrategyName,
		Legs:           legs,
		TotalCost:      totalCost,
		Payout:         payout,
		Edge:           edge,
		Volume:         volume,
		ExpectedProfit: profit,
	}
}

// ExecutionCompletedEvent is emitted unconditionally once execution of an
// approved opportunity finishes, whatever the outcome: a full fill, a
// partial fill, or a clean unwind.
type ExecutionCompletedEvent struct {
	PositionID       ids.PositionId `json:"position_id,omitempty"`
	MarketID         string         `json:"market_id"`
	Outcome          string         `json:"outcome,omitempty"` // "success", "partial", "failed"
	FailureReason    string         `json:"failure_reason,omitempty"`
	Status           string         `json:"status,omitempty"` // "open", "partial_fill", "closed"
	EntryCost        float64        `json:"entry_cost"`
	GuaranteedPayout float64        `json:"guaranteed_payout"`
	FilledLegs       []string       `json:"filled_legs,omitempty"`
	MissingLegs      []string       `json:"missing_legs,omitempty"`
	ClosedPnL        *float64       `json:"closed_pnl,omitempty"`
}

// NewExecutionCompletedEvent builds the event payload from a recorded
// position.
func NewExecutionCompletedEvent(pos domain.Position) ExecutionCompletedEvent {
	entryCost, _ := pos.EntryCost.Float64()
	payout, _ := pos.GuaranteedPayout.Float64()

	evt := ExecutionCompletedEvent{
		PositionID:       pos.ID,
		MarketID:         string(pos.MarketID),
		EntryCost:        entryCost,
		GuaranteedPayout: payout,
	}

	switch st := pos.Status.(type) {
	case domain.StatusOpen:
		evt.Status = "open"
	case domain.StatusPartialFill:
		evt.Status = "partial_fill"
		for _, t := range st.Filled {
			evt.FilledLegs = append(evt.FilledLegs, string(t))
		}
		for _, t := range st.Missing {
			evt.MissingLegs = append(evt.MissingLegs, string(t))
		}
	case domain.StatusClosed:
		evt.Status = "closed"
		pnl, _ := st.PnL.Float64()
		evt.ClosedPnL = &pnl
	}
	return evt
}

// NewExecutionOutcomeEvent builds the payload emitted once per execution,
// whether or not a position was recorded. pos is nil when nothing was
// recorded (a clean failure, or a partial fill fully unwound by cancels).
func NewExecutionOutcomeEvent(marketID string, result domain.TradeResult, pos *domain.Position) ExecutionCompletedEvent {
	var evt ExecutionCompletedEvent
	if pos != nil {
		evt = NewExecutionCompletedEvent(*pos)
	} else {
		evt = ExecutionCompletedEvent{MarketID: marketID}
	}

	switch r := result.(type) {
	case domain.TradeSuccess:
		evt.Outcome = "success"
	case domain.TradePartial:
		evt.Outcome = "partial"
	case domain.TradeFailed:
		evt.Outcome = "failed"
		evt.FailureReason = r.Reason
	}
	return evt
}

// RiskRejectedEvent reports an opportunity the risk gate declined.
type RiskRejectedEvent struct {
	MarketID string `json:"market_id"`
	Reason   string `json:"reason"`
}

func NewRiskRejectedEvent(marketID, reason string) RiskRejectedEvent {
	return RiskRejectedEvent{MarketID: marketID, Reason: reason}
}

// CircuitBreakerActivatedEvent reports the risk gate tripping.
type CircuitBreakerActivatedEvent struct {
	Reason string `json:"reason"`
}

func NewCircuitBreakerActivatedEvent(reason string) CircuitBreakerActivatedEvent {
	return CircuitBreakerActivatedEvent{Reason: reason}
}

// CircuitBreakerResetEvent carries no data; its presence is the message.
type CircuitBreakerResetEvent struct{}

// DailySummaryEvent reports the rolled-up statistics for one reporting
// period.
type DailySummaryEvent struct {
	PeriodStart         time.Time `json:"period_start"`
	PeriodEnd           time.Time `json:"period_end"`
	OpportunitiesFound  int       `json:"opportunities_found"`
	ExecutionsAttempted int       `json:"executions_attempted"`
	ExecutionsClosed    int       `json:"executions_closed"`
	TotalProfit         float64   `json:"total_profit"`
	WinRate             float64   `json:"win_rate"`
}

// RelationsDiscoveredEvent reports a newly compiled cluster of
// logically-related markets.
type RelationsDiscoveredEvent struct {
	ClusterID    ids.ClusterId `json:"cluster_id"`
	MarketIDs    []string      `json:"market_ids"`
	NumRelations int           `json:"num_relations"`
}

// NewRelationsDiscoveredEvent builds the event payload from a compiled
// cluster.
func NewRelationsDiscoveredEvent(c domain.Cluster) RelationsDiscoveredEvent {
	ids := make([]string, len(c.Markets))
	for i, m := range c.Markets {
		ids[i] = string(m)
	}
	return RelationsDiscoveredEvent{
		ClusterID:    c.ID,
		MarketIDs:    ids,
		NumRelations: len(c.Relations),
	}
}
