package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/types"
)

// fakeClient lets tests script per-token responses without a live exchange.
type fakeClient struct {
	postResult map[string]types.OrderResponse
	postErr    map[string]error
	cancelOK   map[string]bool
	cancelErr  error
}

func (f *fakeClient) PostOrders(ctx context.Context, orders []types.UserOrder, negRisk bool) ([]types.OrderResponse, error) {
	order := orders[0]
	if err, ok := f.postErr[order.TokenID]; ok && err != nil {
		return nil, err
	}
	if r, ok := f.postResult[order.TokenID]; ok {
		return []types.OrderResponse{r}, nil
	}
	return []types.OrderResponse{{Success: true, OrderID: "order-" + order.TokenID, Status: "live"}}, nil
}

func (f *fakeClient) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	var canceled []string
	for _, id := range orderIDs {
		if f.cancelOK == nil || f.cancelOK[id] {
			canceled = append(canceled, id)
		}
	}
	return &types.CancelResponse{Canceled: canceled}, nil
}

func twoLegOpportunity(t *testing.T) domain.Opportunity {
	t.Helper()
	opp, err := domain.NewOpportunity(
		"m1", "q",
		[]domain.OpportunityLeg{
			{TokenID: "a", AskPrice: decimal.NewFromFloat(0.4)},
			{TokenID: "b", AskPrice: decimal.NewFromFloat(0.5)},
		},
		decimal.NewFromFloat(10),
		decimal.NewFromFloat(1.0),
		"test",
	)
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}
	return opp
}

func TestExecuteArbitrage_AllLegsSucceed(t *testing.T) {
	opp := twoLegOpportunity(t)
	client := &fakeClient{}
	e := New(client, Config{ExecutionTimeoutSecs: 1}, nil)

	result, err := e.ExecuteArbitrage(context.Background(), opp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	success, ok := result.(domain.TradeSuccess)
	if !ok {
		t.Fatalf("expected TradeSuccess, got %T", result)
	}
	if len(success.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(success.Fills))
	}
}

// TestExecuteArbitrage_S5_PartialFillCancelSucceeds covers S5: leg a
// succeeds, leg b fails, and cancelling a's fill succeeds.
func TestExecuteArbitrage_S5_PartialFillCancelSucceeds(t *testing.T) {
	opp := twoLegOpportunity(t)
	client := &fakeClient{
		postResult: map[string]types.OrderResponse{
			"b": {Success: false, ErrorMsg: "rejected"},
		},
		cancelOK: map[string]bool{"order-a": true},
	}
	e := New(client, Config{ExecutionTimeoutSecs: 1}, nil)

	result, err := e.ExecuteArbitrage(context.Background(), opp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	partial, ok := result.(domain.TradePartial)
	if !ok {
		t.Fatalf("expected TradePartial, got %T", result)
	}
	if len(partial.Fills) != 1 || len(partial.Failures) != 1 {
		t.Fatalf("expected 1 fill and 1 failure, got %d fills %d failures", len(partial.Fills), len(partial.Failures))
	}

	pos, recorded := e.RecoverPartial(context.Background(), opp, partial, func() ids.PositionId { return 1 }, time.Now())
	if recorded {
		t.Fatalf("expected no position recorded when all cancels succeed, got %+v", pos)
	}
}

// TestExecuteArbitrage_S6_PartialFillCancelFails covers S6: legs a and b
// succeed, leg c fails, and cancelling a's fill fails — a PartialFill
// position must be recorded.
func TestExecuteArbitrage_S6_PartialFillCancelFails(t *testing.T) {
	opp, err := domain.NewOpportunity(
		"m1", "q",
		[]domain.OpportunityLeg{
			{TokenID: "a", AskPrice: decimal.NewFromFloat(0.3)},
			{TokenID: "b", AskPrice: decimal.NewFromFloat(0.3)},
			{TokenID: "c", AskPrice: decimal.NewFromFloat(0.3)},
		},
		decimal.NewFromFloat(10),
		decimal.NewFromFloat(1.0),
		"test",
	)
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}

	client := &fakeClient{
		postResult: map[string]types.OrderResponse{
			"c": {Success: false, ErrorMsg: "rejected"},
		},
		cancelOK: map[string]bool{"order-a": false, "order-b": true},
	}
	e := New(client, Config{ExecutionTimeoutSecs: 1}, nil)

	result, err := e.ExecuteArbitrage(context.Background(), opp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	partial, ok := result.(domain.TradePartial)
	if !ok {
		t.Fatalf("expected TradePartial, got %T", result)
	}

	pos, recorded := e.RecoverPartial(context.Background(), opp, partial, func() ids.PositionId { return 2 }, time.Now())
	if !recorded {
		t.Fatal("expected a PartialFill position to be recorded when a cancel fails")
	}
	status, ok := pos.Status.(domain.StatusPartialFill)
	if !ok {
		t.Fatalf("expected StatusPartialFill, got %T", pos.Status)
	}
	if len(status.Filled) != 2 || len(status.Missing) != 1 {
		t.Fatalf("expected 2 filled, 1 missing, got filled=%v missing=%v", status.Filled, status.Missing)
	}
	wantEntryCost := decimal.NewFromFloat(0.3).Mul(decimal.NewFromFloat(10)).Add(decimal.NewFromFloat(0.3).Mul(decimal.NewFromFloat(10)))
	if !pos.EntryCost.Equal(wantEntryCost) {
		t.Errorf("entry cost = %s, want %s", pos.EntryCost, wantEntryCost)
	}
}

func TestExecuteArbitrage_AllLegsFail(t *testing.T) {
	opp := twoLegOpportunity(t)
	client := &fakeClient{
		postErr: map[string]error{
			"a": fmt.Errorf("network error"),
			"b": fmt.Errorf("network error"),
		},
	}
	e := New(client, Config{ExecutionTimeoutSecs: 1}, nil)

	result, err := e.ExecuteArbitrage(context.Background(), opp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.(domain.TradeFailed); !ok {
		t.Fatalf("expected TradeFailed, got %T", result)
	}
}

func TestExecuteArbitrage_RejectsSingleLeg(t *testing.T) {
	e := New(&fakeClient{}, Config{}, nil)
	opp := domain.Opportunity{MarketID: "m1", Legs: []domain.OpportunityLeg{{TokenID: "a", AskPrice: decimal.NewFromFloat(0.4)}}, Volume: decimal.NewFromFloat(1), Payout: decimal.NewFromFloat(1)}

	result, err := e.ExecuteArbitrage(context.Background(), opp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.(domain.TradeFailed); !ok {
		t.Fatalf("expected TradeFailed for single-leg opportunity, got %T", result)
	}
}
