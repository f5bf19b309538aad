package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/domain"
)

func TestStatsStore_RecordAndSnapshot(t *testing.T) {
	s, err := OpenStats(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStats: %v", err)
	}

	opp, err := domain.NewOpportunity("m1", "q", []domain.OpportunityLeg{
		{TokenID: "t1", AskPrice: decimal.NewFromFloat(0.4)},
		{TokenID: "t2", AskPrice: decimal.NewFromFloat(0.5)},
	}, decimal.NewFromFloat(100), decimal.NewFromFloat(1), "single_condition")
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}

	s.RecordOpportunity(opp)
	s.RecordExecution(domain.TradeSuccess{Fills: []domain.Fill{{TokenID: "t1", Price: decimal.NewFromFloat(0.4), Size: decimal.NewFromFloat(100)}}})
	s.RecordPosition(domain.Position{MarketID: "m1", Status: domain.StatusClosed{PnL: decimal.NewFromFloat(12.5)}})

	snap := s.Snapshot()
	if snap.OpportunitiesFound != 1 {
		t.Fatalf("OpportunitiesFound = %d, want 1", snap.OpportunitiesFound)
	}
	if snap.ExecutionsSucceeded != 1 {
		t.Fatalf("ExecutionsSucceeded = %d, want 1", snap.ExecutionsSucceeded)
	}
	if snap.ExecutionsClosed != 1 || snap.TotalProfit != 12.5 {
		t.Fatalf("closed/profit = %d/%v, want 1/12.5", snap.ExecutionsClosed, snap.TotalProfit)
	}
	if got := s.OpportunityScore("m1"); got <= 0 {
		t.Fatalf("OpportunityScore(m1) = %v, want > 0", got)
	}

	reopened, err := OpenStats(s.dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Snapshot().OpportunitiesFound != 1 {
		t.Fatal("expected persisted stats to survive reopen")
	}
}
