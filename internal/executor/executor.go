// Package executor submits every leg of a detected arbitrage opportunity
// in parallel and classifies the outcome.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/types"
)

// OrderClient is the narrow slice of the exchange REST client the executor
// depends on, letting tests substitute a fake without a live connection.
type OrderClient interface {
	PostOrders(ctx context.Context, orders []types.UserOrder, negRisk bool) ([]types.OrderResponse, error)
	CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error)
}

// Config tunes the executor's per-leg submission deadline.
type Config struct {
	ExecutionTimeoutSecs int
}

// Executor implements the multi-leg arbitrage execution protocol: one
// limit buy per leg, submitted concurrently, classified into a
// domain.TradeResult once every leg has responded or timed out.
type Executor struct {
	client OrderClient
	cfg    Config
	logger *slog.Logger
}

// New constructs an Executor backed by client.
func New(client OrderClient, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ExecutionTimeoutSecs <= 0 {
		cfg.ExecutionTimeoutSecs = 30
	}
	return &Executor{client: client, cfg: cfg, logger: logger}
}

type legOutcome struct {
	fill    *domain.Fill
	failure *domain.LegFailure
}

// ExecuteArbitrage submits every leg of opp as a limit buy at its ask
// price for opp.Volume shares, concurrently, and classifies the result as
// a TradeSuccess, TradePartial, or TradeFailed.
func (e *Executor) ExecuteArbitrage(ctx context.Context, opp domain.Opportunity) (domain.TradeResult, error) {
	if len(opp.Legs) < 2 {
		return domain.TradeFailed{Reason: "needs >= 2 legs"}, nil
	}

	timeout := time.Duration(e.cfg.ExecutionTimeoutSecs) * time.Second
	outcomes := make([]legOutcome, len(opp.Legs))

	var wg sync.WaitGroup
	wg.Add(len(opp.Legs))
	for i, leg := range opp.Legs {
		go func(i int, leg domain.OpportunityLeg) {
			defer wg.Done()
			outcomes[i] = e.submitLeg(ctx, leg, opp.Volume, timeout)
		}(i, leg)
	}
	wg.Wait()

	var fills []domain.Fill
	var failures []domain.LegFailure
	for _, o := range outcomes {
		if o.fill != nil {
			fills = append(fills, *o.fill)
		}
		if o.failure != nil {
			failures = append(failures, *o.failure)
		}
	}

	switch {
	case len(failures) == 0:
		return domain.TradeSuccess{Fills: fills}, nil
	case len(fills) == 0:
		reasons := make([]string, len(failures))
		for i, f := range failures {
			reasons[i] = f.Reason
		}
		return domain.TradeFailed{Reason: strings.Join(reasons, "; ")}, nil
	default:
		return domain.TradePartial{Fills: fills, Failures: failures}, nil
	}
}

func (e *Executor) submitLeg(ctx context.Context, leg domain.OpportunityLeg, volume domain.Volume, timeout time.Duration) legOutcome {
	legCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	price, _ := leg.AskPrice.Float64()
	size, _ := volume.Float64()

	order := types.UserOrder{
		TokenID:   string(leg.TokenID),
		Price:     price,
		Size:      size,
		Side:      types.BUY,
		OrderType: types.OrderTypeGTC,
	}

	results, err := e.client.PostOrders(legCtx, []types.UserOrder{order}, false)
	if err != nil {
		reason := fmt.Sprintf("submission failed: %v", err)
		if legCtx.Err() != nil {
			reason = fmt.Sprintf("submission timed out: %v", legCtx.Err())
		}
		e.logger.Warn("executor: leg submission failed", "token_id", string(leg.TokenID), "error", err)
		return legOutcome{failure: &domain.LegFailure{TokenID: leg.TokenID, Reason: reason}}
	}
	if len(results) == 0 || !results[0].Success {
		reason := "order rejected"
		if len(results) > 0 && results[0].ErrorMsg != "" {
			reason = results[0].ErrorMsg
		}
		return legOutcome{failure: &domain.LegFailure{TokenID: leg.TokenID, Reason: reason}}
	}

	return legOutcome{fill: &domain.Fill{
		TokenID: leg.TokenID,
		OrderID: ids.OrderId(results[0].OrderID),
		Price:   leg.AskPrice,
		Size:    volume,
	}}
}

// Cancel cancels a single open order by ID.
func (e *Executor) Cancel(ctx context.Context, orderID ids.OrderId) error {
	result, err := e.client.CancelOrders(ctx, []string{string(orderID)})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	for _, canceled := range result.Canceled {
		if canceled == string(orderID) {
			return nil
		}
	}
	return fmt.Errorf("cancel order %s: not confirmed canceled", orderID)
}
