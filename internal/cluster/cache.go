// Package cluster holds the set of markets linked by inferred logical
// relations, and the debounced background service that re-runs the
// combinatorial solver whenever a cluster's member books change.
package cluster

import (
	"sync"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// Cache holds the latest domain.Cluster for every cluster ID the
// inference loop has produced, replacing an entry wholesale on every
// Put the way internal/registry replaces its whole index.
type Cache struct {
	mu       sync.RWMutex
	clusters map[ids.ClusterId]domain.Cluster
	// marketIndex maps a market to the cluster it belongs to, rebuilt
	// alongside clusters on every Put/Delete so DetectionService can go
	// from a book update's market straight to its cluster.
	marketIndex map[ids.MarketId]ids.ClusterId
}

// NewCache returns an empty cluster cache.
func NewCache() *Cache {
	return &Cache{
		clusters:    make(map[ids.ClusterId]domain.Cluster),
		marketIndex: make(map[ids.MarketId]ids.ClusterId),
	}
}

// Put installs c as the current state for its ID, replacing any prior
// entry and reindexing its member markets.
func (cache *Cache) Put(c domain.Cluster) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.clusters[c.ID] = c
	for _, m := range c.Markets {
		cache.marketIndex[m] = c.ID
	}
}

// Get returns the cluster for id, if present.
func (cache *Cache) Get(id ids.ClusterId) (domain.Cluster, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	c, ok := cache.clusters[id]
	if !ok {
		return domain.Cluster{}, false
	}
	return c, true
}

// Fresh reports whether the cluster for id is present and was last
// updated within ttl of now. A missing cluster is never fresh.
func (cache *Cache) Fresh(id ids.ClusterId, ttl time.Duration, now time.Time) (domain.Cluster, bool) {
	c, ok := cache.Get(id)
	if !ok {
		return domain.Cluster{}, false
	}
	if now.Sub(c.UpdatedAt) > ttl {
		return domain.Cluster{}, false
	}
	return c, true
}

// ClusterForMarket returns the ID of the cluster containing marketID, if
// any.
func (cache *Cache) ClusterForMarket(marketID ids.MarketId) (ids.ClusterId, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	id, ok := cache.marketIndex[marketID]
	return id, ok
}

// Delete removes a cluster and its market index entries.
func (cache *Cache) Delete(id ids.ClusterId) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	c, ok := cache.clusters[id]
	if !ok {
		return
	}
	delete(cache.clusters, id)
	for _, m := range c.Markets {
		if cache.marketIndex[m] == id {
			delete(cache.marketIndex, m)
		}
	}
}

// Len returns the number of clusters currently cached.
func (cache *Cache) Len() int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.clusters)
}
