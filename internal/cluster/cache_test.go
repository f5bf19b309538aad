package cluster

import (
	"testing"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

func marketIDs(values ...string) []ids.MarketId {
	out := make([]ids.MarketId, len(values))
	for i, s := range values {
		out[i] = ids.MarketId(s)
	}
	return out
}

func TestCache_PutGetAndMarketIndex(t *testing.T) {
	t.Parallel()
	c := NewCache()
	cluster := domain.Cluster{
		ID:        "c1",
		Markets:   marketIDs("m1", "m2"),
		UpdatedAt: time.Now(),
	}
	c.Put(cluster)

	got, ok := c.Get("c1")
	if !ok {
		t.Fatal("expected cluster c1 to be present")
	}
	if len(got.Markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(got.Markets))
	}

	clusterID, ok := c.ClusterForMarket("m2")
	if !ok || clusterID != "c1" {
		t.Fatalf("ClusterForMarket(m2) = (%v, %v), want (c1, true)", clusterID, ok)
	}
}

func TestCache_Fresh_ExpiresByTTL(t *testing.T) {
	t.Parallel()
	c := NewCache()
	old := domain.Cluster{ID: "c1", UpdatedAt: time.Now().Add(-time.Hour)}
	c.Put(old)

	if _, ok := c.Fresh("c1", time.Minute, time.Now()); ok {
		t.Fatal("expected stale cluster to not be fresh")
	}
	if _, ok := c.Fresh("c1", 2*time.Hour, time.Now()); !ok {
		t.Fatal("expected cluster within a wider TTL to be fresh")
	}
}

func TestCache_Delete_RemovesMarketIndex(t *testing.T) {
	t.Parallel()
	c := NewCache()
	c.Put(domain.Cluster{ID: "c1", Markets: marketIDs("m1")})
	c.Delete("c1")

	if _, ok := c.Get("c1"); ok {
		t.Fatal("expected cluster to be gone after Delete")
	}
	if _, ok := c.ClusterForMarket("m1"); ok {
		t.Fatal("expected market index entry to be gone after Delete")
	}
}
