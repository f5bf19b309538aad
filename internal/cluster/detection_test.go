package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/book"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/registry"
	"github.com/edgelord/edgelord/internal/strategy"
	"github.com/edgelord/edgelord/pkg/ids"
)

func threeWayCluster() ([]domain.Market, domain.Cluster) {
	markets := []domain.Market{
		{MarketID: "m1", Question: "a", Outcomes: []domain.Outcome{{TokenID: "m1-yes", Name: "Yes"}}, Payout: decimal.NewFromFloat(1)},
		{MarketID: "m2", Question: "b", Outcomes: []domain.Outcome{{TokenID: "m2-yes", Name: "Yes"}}, Payout: decimal.NewFromFloat(1)},
		{MarketID: "m3", Question: "c", Outcomes: []domain.Outcome{{TokenID: "m3-yes", Name: "Yes"}}, Payout: decimal.NewFromFloat(1)},
	}
	c := domain.Cluster{
		ID:      "cluster-1",
		Markets: []ids.MarketId{"m1", "m2", "m3"},
		Constraints: []domain.Constraint{
			{Coefficients: []float64{1, 1, 1}, Sense: domain.SenseEqual, RHS: 1},
		},
		UpdatedAt: time.Now(),
	}
	return markets, c
}

// TestDetectionService_S9_MutualExclusionGap wires the full debounce
// pipeline: book updates mark a cluster dirty, the ticker drains it, and a
// mispriced exactly-one cluster produces a ClusterOpportunity.
func TestDetectionService_S9_MutualExclusionGap(t *testing.T) {
	markets, clusterDef := threeWayCluster()

	reg := registry.New()
	reg.Build(markets)

	clusters := NewCache()
	clusters.Put(clusterDef)

	books := book.New(nil)
	solver := strategy.NewCombinatorial(strategy.CombinatorialConfig{MinGap: 1e-6})

	svc := NewDetectionService(Config{
		DebounceMs:          10,
		MinGap:              1e-6,
		MaxClustersPerCycle: 10,
		CacheTTL:            time.Hour,
	}, books, clusters, reg, solver, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	books.Update(domain.Book{TokenID: "m1-yes", Asks: []domain.PriceLevel{{Price: decimal.NewFromFloat(0.35), Size: decimal.NewFromFloat(100)}}})
	books.Update(domain.Book{TokenID: "m2-yes", Asks: []domain.PriceLevel{{Price: decimal.NewFromFloat(0.35), Size: decimal.NewFromFloat(100)}}})
	books.Update(domain.Book{TokenID: "m3-yes", Asks: []domain.PriceLevel{{Price: decimal.NewFromFloat(0.35), Size: decimal.NewFromFloat(100)}}})

	select {
	case opp := <-svc.Opportunities():
		if opp.ClusterID != "cluster-1" {
			t.Fatalf("cluster id = %s, want cluster-1", opp.ClusterID)
		}
		if opp.Result.Gap <= 0 {
			t.Fatalf("gap = %v, want > 0", opp.Result.Gap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cluster opportunity")
	}
}

func TestDetectionService_SkipsExpiredCluster(t *testing.T) {
	markets, clusterDef := threeWayCluster()
	clusterDef.UpdatedAt = time.Now().Add(-time.Hour)

	reg := registry.New()
	reg.Build(markets)

	clusters := NewCache()
	clusters.Put(clusterDef)

	books := book.New(nil)
	solver := strategy.NewCombinatorial(strategy.CombinatorialConfig{MinGap: 1e-6})

	svc := NewDetectionService(Config{
		DebounceMs:          10,
		MinGap:              1e-6,
		MaxClustersPerCycle: 10,
		CacheTTL:            time.Minute,
	}, books, clusters, reg, solver, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	books.Update(domain.Book{TokenID: "m1-yes", Asks: []domain.PriceLevel{{Price: decimal.NewFromFloat(0.35), Size: decimal.NewFromFloat(100)}}})

	select {
	case opp := <-svc.Opportunities():
		t.Fatalf("expected no opportunity for an expired cluster, got %+v", opp)
	case <-time.After(200 * time.Millisecond):
	}
}
