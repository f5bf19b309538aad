package executor

import (
	"context"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// RecoverPartial implements the partial-fill recovery policy: cancel every
// filled leg's order. If every cancel succeeds, it reports that nothing
// needs to be recorded. If any cancel fails, it builds the PartialFill
// position the caller should persist, tracking which legs are filled and
// which are missing, with entry cost equal to the sum of the filled legs'
// cost times the opportunity's volume.
func (e *Executor) RecoverPartial(ctx context.Context, opp domain.Opportunity, partial domain.TradePartial, newPositionID func() ids.PositionId, now time.Time) (domain.Position, bool) {
	allCancelled := true
	for _, fill := range partial.Fills {
		if err := e.Cancel(ctx, fill.OrderID); err != nil {
			e.logger.Warn("executor: failed to cancel filled leg during partial-fill recovery", "token_id", string(fill.TokenID), "order_id", string(fill.OrderID), "error", err)
			allCancelled = false
		} else {
			e.logger.Info("executor: cancelled filled leg during partial-fill recovery", "token_id", string(fill.TokenID), "order_id", string(fill.OrderID))
		}
	}
	if allCancelled {
		return domain.Position{}, false
	}

	filled := make([]ids.TokenId, 0, len(partial.Fills))
	entryCost := domain.Zero()
	for _, fill := range partial.Fills {
		filled = append(filled, fill.TokenID)
		entryCost = entryCost.Add(fill.Price.Mul(fill.Size))
	}
	missing := make([]ids.TokenId, 0, len(partial.Failures))
	for _, failure := range partial.Failures {
		missing = append(missing, failure.TokenID)
	}

	return domain.Position{
		ID:               newPositionID(),
		MarketID:         opp.MarketID,
		Legs:             opp.Legs,
		EntryCost:        entryCost,
		GuaranteedPayout: opp.Payout,
		OpenedAt:         now,
		Status:           domain.StatusPartialFill{Filled: filled, Missing: missing},
	}, true
}
