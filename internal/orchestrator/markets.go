package orchestrator

import (
	"context"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/governor"
	"github.com/edgelord/edgelord/internal/market"
)

// consumeScanResults applies every subsequent scan the scanner produces
// after the initial synchronous fetch in Start.
func (o *Orchestrator) consumeScanResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-o.scanner.Results():
			if !ok {
				return
			}
			o.ingestMarkets(ctx, result.Markets)
		}
	}
}

// ingestMarkets rebuilds the registry from a fresh discovery pass,
// registers each market's tokens with the subscription manager, scores
// them against accumulated hit-rate stats, expands subscriptions up to
// capacity, and applies the resulting active set to the connection pool.
func (o *Orchestrator) ingestMarkets(ctx context.Context, discovered []market.DiscoveredMarket) {
	markets := make([]domain.Market, 0, len(discovered))
	for _, d := range discovered {
		markets = append(markets, d.Market)
	}
	o.registry.Build(markets)

	o.discoveredMu.Lock()
	o.discovered = discovered
	o.discoveredMu.Unlock()

	weights := domain.DefaultScoreWeights()
	scores := make([]domain.MarketScore, 0, len(discovered))
	for _, d := range discovered {
		o.subs.RegisterMarketTokens(d.Market.MarketID, d.Market.TokenIDs())
		factors := d.Factors
		factors.Opportunity = o.statsStore.OpportunityScore(string(d.Market.MarketID))
		scores = append(scores, domain.NewMarketScore(d.Market.MarketID, factors, weights))
	}
	o.subs.Enqueue(scores)

	if pending := o.subs.PendingCount(); pending > 0 {
		if _, err := o.subs.ExpandSafe(pending); err != nil {
			o.logger.Warn("orchestrator: failed to expand subscriptions", "error", err)
		}
	}

	if err := o.pool.Subscribe(ctx, o.subs.ActiveTokens()); err != nil {
		o.logger.Error("orchestrator: failed to apply subscription set to pool", "error", err)
	}
}

// runGovernor periodically evaluates the subscription governor and
// expands or contracts active subscriptions in response, re-applying the
// active token set to the pool after every change.
func (o *Orchestrator) runGovernor(ctx context.Context) {
	interval := time.Duration(o.cfg.Governor.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rec := o.gov.Evaluate(now)
			if o.applyRecommendation(rec) {
				if err := o.pool.Subscribe(ctx, o.subs.ActiveTokens()); err != nil {
					o.logger.Error("orchestrator: failed to apply governor-driven subscription change", "error", err)
				}
			}
		}
	}
}

// applyRecommendation dispatches on the governor's scaling recommendation
// and reports whether the active subscription set changed.
func (o *Orchestrator) applyRecommendation(rec governor.ScalingRecommendation) bool {
	switch r := rec.(type) {
	case governor.Expand:
		tokens, err := o.subs.ExpandSafe(r.SuggestedCount)
		if err != nil {
			o.logger.Warn("orchestrator: governor expand failed", "error", err)
			return false
		}
		return len(tokens) > 0
	case governor.Contract:
		tokens, err := o.subs.ContractSafe(r.SuggestedCount)
		if err != nil {
			o.logger.Warn("orchestrator: governor contract failed", "error", err)
			return false
		}
		return len(tokens) > 0
	default:
		return false
	}
}
