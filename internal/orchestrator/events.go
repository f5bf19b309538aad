package orchestrator

import (
	"context"
	"time"

	"github.com/edgelord/edgelord/internal/api"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/risk"
	"github.com/edgelord/edgelord/internal/strategy"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/money"
)

// maxConsecutiveExecutionErrors is how many executions in a row may error
// out (not merely fail per-leg) before the circuit breaker trips.
const maxConsecutiveExecutionErrors = 3

// consumeMarketEvents is the hot path: every book update from the
// connection pool updates the book cache, then runs the per-market
// strategies (single-condition, market-rebalancing) against the owning
// market's current book state. Cluster-level combinatorial detection runs
// separately, driven by book.Cache.Subscribe inside the detection
// service, since it debounces across many markets rather than reacting to
// a single token.
func (o *Orchestrator) consumeMarketEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-o.pool.Events():
			if !ok {
				return
			}
			o.handleMarketEvent(ctx, evt)
		}
	}
}

func (o *Orchestrator) handleMarketEvent(ctx context.Context, evt domain.MarketEvent) {
	switch e := evt.(type) {
	case domain.BookSnapshot:
		o.onBookUpdate(ctx, e.TokenID, e.Book)
	case domain.BookDelta:
		o.onBookUpdate(ctx, e.TokenID, e.Book)
	case domain.MarketSettled:
		o.closePositionsForMarket(e.MarketID, e.PayoutPerShare)
	case domain.Connected:
		o.logger.Info("orchestrator: market data stream connected")
	case domain.Disconnected:
		o.logger.Warn("orchestrator: market data stream disconnected", "reason", e.Reason)
	}
}

// onBookUpdate folds a book update into the cache and re-runs the
// per-market strategy registry against the owning market's full set of
// order books, since a single-leg price move can make a previously
// unprofitable multi-leg combination profitable.
func (o *Orchestrator) onBookUpdate(ctx context.Context, tokenID ids.TokenId, b domain.Book) {
	o.books.Update(b)

	mkt, ok := o.registry.ByToken(tokenID)
	if !ok {
		return
	}

	books := o.books.GetMany(mkt.TokenIDs())
	dc := strategy.NewDetectionContext(mkt, books)
	opportunities := o.strategies.Detect(dc)
	for _, opp := range opportunities {
		o.handleOpportunity(ctx, opp)
	}
}

// consumeClusterOpportunities drains the combinatorial detection
// service's output channel and runs every emitted opportunity through
// the same risk/execute/record pipeline as a per-market opportunity.
func (o *Orchestrator) consumeClusterOpportunities(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case co, ok := <-o.detectionSvc.Opportunities():
			if !ok {
				return
			}
			o.handleOpportunity(ctx, co.Result.Opportunity)
		}
	}
}

// handleOpportunity runs one detected opportunity through the full
// pipeline: tally it, notify, gate it through risk, execute it if
// approved, classify the trade outcome, and persist/notify/tally the
// resulting position.
func (o *Orchestrator) handleOpportunity(ctx context.Context, opp domain.Opportunity) {
	o.statsStore.RecordOpportunity(opp)
	o.notifier.Notify(api.DashboardEvent{
		Type:      api.EventOpportunityDetected,
		Timestamp: time.Now(),
		MarketID:  string(opp.MarketID),
		Data:      api.NewOpportunityDetectedEvent(opp),
	})

	result := o.riskMgr.Check(opp)
	if result.Decision == risk.Rejected {
		o.notifier.Notify(api.DashboardEvent{
			Type:      api.EventRiskRejected,
			Timestamp: time.Now(),
			MarketID:  string(opp.MarketID),
			Data:      api.NewRiskRejectedEvent(string(opp.MarketID), result.Reason),
		})
		return
	}

	if reason, stale := o.slippageExceeded(opp); stale {
		o.riskMgr.Release(result.Handle)
		o.notifier.Notify(api.DashboardEvent{
			Type:      api.EventRiskRejected,
			Timestamp: time.Now(),
			MarketID:  string(opp.MarketID),
			Data:      api.NewRiskRejectedEvent(string(opp.MarketID), "stale: "+reason),
		})
		return
	}

	start := time.Now()
	tradeResult, err := o.exec.ExecuteArbitrage(ctx, opp)
	o.reservoir.Observe(float64(time.Since(start).Milliseconds()))
	o.riskMgr.Release(result.Handle)
	if err != nil {
		o.logger.Error("orchestrator: execution error", "market_id", string(opp.MarketID), "error", err)
		if o.execErrors.Add(1) >= maxConsecutiveExecutionErrors && !o.riskMgr.IsActive() {
			o.TripBreaker("repeated execution errors")
		}
	} else {
		o.execErrors.Store(0)
	}
	o.statsStore.RecordExecution(tradeResult)

	pos, recorded := o.buildPosition(ctx, opp, tradeResult)
	if recorded {
		o.recordPosition(pos)
	}

	var posPtr *domain.Position
	if recorded {
		posPtr = &pos
	}
	o.notifier.Notify(api.DashboardEvent{
		Type:      api.EventExecutionCompleted,
		Timestamp: time.Now(),
		MarketID:  string(opp.MarketID),
		Data:      api.NewExecutionOutcomeEvent(string(opp.MarketID), tradeResult, posPtr),
	})
}

// slippageExceeded rechecks every leg's current best ask right before
// submission. A leg whose ask has drifted from the detected price by more
// than the configured fraction, or whose book has since emptied, makes
// the whole opportunity stale.
func (o *Orchestrator) slippageExceeded(opp domain.Opportunity) (string, bool) {
	maxSlippage := money.FromFloat(o.cfg.Risk.MaxSlippage)

	tokens := make([]ids.TokenId, len(opp.Legs))
	for i, leg := range opp.Legs {
		tokens[i] = leg.TokenID
	}
	books := o.books.GetMany(tokens)

	for _, leg := range opp.Legs {
		b, ok := books[leg.TokenID]
		if !ok {
			return "book missing for " + string(leg.TokenID), true
		}
		ask, ok := b.BestAsk()
		if !ok {
			return "no asks for " + string(leg.TokenID), true
		}
		if leg.AskPrice.IsZero() {
			continue
		}
		drift := ask.Price.Sub(leg.AskPrice).Abs().Div(leg.AskPrice)
		if drift.GreaterThan(maxSlippage) {
			return "price drifted on " + string(leg.TokenID), true
		}
	}
	return "", false
}

// buildPosition turns a trade result into the position that should be
// persisted, or reports false if nothing needs recording (a clean
// failure, or a partial fill whose filled legs were all successfully
// cancelled).
func (o *Orchestrator) buildPosition(ctx context.Context, opp domain.Opportunity, result domain.TradeResult) (domain.Position, bool) {
	switch tr := result.(type) {
	case domain.TradeSuccess:
		entryCost := domain.Zero()
		for _, f := range tr.Fills {
			entryCost = entryCost.Add(f.Price.Mul(f.Size))
		}
		return domain.Position{
			ID:               o.newPositionID(),
			MarketID:         opp.MarketID,
			Legs:             opp.Legs,
			EntryCost:        entryCost,
			GuaranteedPayout: opp.Payout,
			OpenedAt:         time.Now(),
			Status:           domain.StatusOpen{},
		}, true

	case domain.TradePartial:
		return o.exec.RecoverPartial(ctx, opp, tr, o.newPositionID, time.Now())

	default:
		return domain.Position{}, false
	}
}

// recordPosition tracks pos in memory, persists it, tallies it, and
// updates the risk manager's per-market exposure. The execution-completed
// notification is the caller's responsibility, since it fires even when
// no position was recorded.
func (o *Orchestrator) recordPosition(pos domain.Position) {
	o.positionsMu.Lock()
	o.positions[pos.ID] = pos
	o.positionsMu.Unlock()

	if err := o.posStore.SavePosition(pos); err != nil {
		o.logger.Error("orchestrator: failed to persist position", "position_id", pos.ID, "error", err)
	}
	o.statsStore.RecordPosition(pos)
	o.riskMgr.SetExposure(pos.MarketID, pos.EntryCost)
}

// closePositionsForMarket marks every still-open or partially-filled
// tracked position on marketID as closed once the market settles. PnL is
// the difference between the position's already-guaranteed payout and
// its entry cost — settlement resolution itself (which outcome won, what
// it pays) is out of scope; this only closes the books on positions this
// process already holds.
func (o *Orchestrator) closePositionsForMarket(marketID ids.MarketId, _ domain.Money) {
	var toClose []domain.Position

	o.positionsMu.Lock()
	for id, pos := range o.positions {
		if pos.MarketID != marketID {
			continue
		}
		if _, closed := pos.Status.(domain.StatusClosed); closed {
			continue
		}
		pos.Status = domain.StatusClosed{PnL: pos.GuaranteedPayout.Sub(pos.EntryCost)}
		o.positions[id] = pos
		toClose = append(toClose, pos)
	}
	o.positionsMu.Unlock()

	for _, pos := range toClose {
		if err := o.posStore.SavePosition(pos); err != nil {
			o.logger.Error("orchestrator: failed to persist settled position", "position_id", pos.ID, "error", err)
		}
		o.statsStore.RecordPosition(pos)
		o.notifier.Notify(api.DashboardEvent{
			Type:      api.EventExecutionCompleted,
			Timestamp: time.Now(),
			MarketID:  string(pos.MarketID),
			Data:      api.NewExecutionCompletedEvent(pos),
		})
	}
}
