package orchestrator

import (
	"github.com/edgelord/edgelord/internal/api"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/market"
)

// GetMarketsSnapshot implements api.MarketSnapshotProvider, ranking the
// most recently discovered markets by composite score.
func (o *Orchestrator) GetMarketsSnapshot() []api.MarketStatus {
	o.discoveredMu.RLock()
	discovered := o.discovered
	o.discoveredMu.RUnlock()

	weights := domain.DefaultScoreWeights()
	out := make([]api.MarketStatus, 0, len(discovered))
	for _, d := range discovered {
		factors := d.Factors
		factors.Opportunity = o.statsStore.OpportunityScore(string(d.Market.MarketID))

		outcomes := make([]string, len(d.Market.Outcomes))
		for i, oc := range d.Market.Outcomes {
			outcomes[i] = oc.Name
		}

		out = append(out, api.MarketStatus{
			MarketID:     string(d.Market.MarketID),
			Question:     d.Market.Question,
			Outcomes:     outcomes,
			Composite:    factors.Composite(weights),
			Liquidity:    factors.Liquidity,
			Spread:       factors.Spread,
			Activity:     factors.Activity,
			OutcomeCount: factors.OutcomeCount,
			Opportunity:  factors.Opportunity,
		})
	}
	return out
}

// GetPositionsSnapshot implements api.MarketSnapshotProvider.
func (o *Orchestrator) GetPositionsSnapshot() []api.PositionSnapshot {
	o.positionsMu.RLock()
	defer o.positionsMu.RUnlock()

	out := make([]api.PositionSnapshot, 0, len(o.positions))
	for _, pos := range o.positions {
		out = append(out, toPositionSnapshot(pos))
	}
	return out
}

func toPositionSnapshot(pos domain.Position) api.PositionSnapshot {
	legs := make([]api.PositionLeg, len(pos.Legs))
	for i, l := range pos.Legs {
		price, _ := l.AskPrice.Float64()
		legs[i] = api.PositionLeg{TokenID: string(l.TokenID), AskPrice: price}
	}
	entryCost, _ := pos.EntryCost.Float64()
	payout, _ := pos.GuaranteedPayout.Float64()
	expectedProfit := payout - entryCost

	snap := api.PositionSnapshot{
		ID:               pos.ID,
		MarketID:         string(pos.MarketID),
		Legs:             legs,
		EntryCost:        entryCost,
		GuaranteedPayout: payout,
		ExpectedProfit:   expectedProfit,
		OpenedAt:         pos.OpenedAt,
	}

	switch st := pos.Status.(type) {
	case domain.StatusOpen:
		snap.Status = "open"
	case domain.StatusPartialFill:
		snap.Status = "partial_fill"
		for _, t := range st.Filled {
			snap.FilledLegs = append(snap.FilledLegs, string(t))
		}
		for _, t := range st.Missing {
			snap.MissingLegs = append(snap.MissingLegs, string(t))
		}
	case domain.StatusClosed:
		snap.Status = "closed"
		pnl, _ := st.PnL.Float64()
		snap.ClosedPnL = &pnl
	}
	return snap
}

// GetRiskSnapshot implements api.MarketSnapshotProvider.
func (o *Orchestrator) GetRiskSnapshot() api.RiskSnapshot {
	snap := o.riskMgr.Snapshot()
	total, _ := snap.TotalExposure.Float64()
	pending, _ := snap.PendingExposure.Float64()
	maxPosition := o.cfg.Risk.MaxPositionPerMarket
	maxTotal := o.cfg.Risk.MaxTotalExposure

	var exposurePct float64
	if maxTotal > 0 {
		exposurePct = (total + pending) / maxTotal
	}

	return api.RiskSnapshot{
		TotalExposure:    total,
		PendingExposure:  pending,
		PendingCount:     snap.PendingCount,
		MaxPositionLimit: maxPosition,
		MaxTotalLimit:    maxTotal,
		ExposurePct:      exposurePct,
		BreakerActive:    snap.BreakerActive,
		BreakerReason:    snap.BreakerReason,
	}
}

// GetPoolSnapshot implements api.MarketSnapshotProvider.
func (o *Orchestrator) GetPoolSnapshot() api.PoolSnapshot {
	s := o.pool.Stats()
	return api.PoolSnapshot{
		ActiveConnections: s.ActiveConnections,
		TotalRotations:    s.TotalRotations,
		TotalRestarts:     s.TotalRestarts,
		EventsDropped:     s.EventsDropped,
	}
}

// GetScannerStats implements api.MarketSnapshotProvider.
func (o *Orchestrator) GetScannerStats() market.Stats {
	return o.scanner.Stats()
}

// DashboardEvents implements api.MarketSnapshotProvider.
func (o *Orchestrator) DashboardEvents() <-chan api.DashboardEvent {
	return o.dashboardCh
}
