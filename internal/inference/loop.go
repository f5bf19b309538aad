package inference

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgelord/edgelord/internal/cluster"
	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/registry"
	"github.com/edgelord/edgelord/pkg/ids"
)

// Loop periodically batches markets from the registry through a
// RelationInferrer, groups the relations it returns into connected
// components (markets sharing at least one relation belong in the same
// cluster), compiles each component into a domain.Cluster via
// internal/cluster.CompileCluster, and installs it into the cluster
// cache. Runs an initial pass, then a ticker, both cancellable via
// context.
type Loop struct {
	cfg       config.InferenceConfig
	inferrer  RelationInferrer
	registry  *registry.Registry
	clusters  *cluster.Cache
	onCluster func(domain.Cluster)
	logger    *slog.Logger
}

// NewLoop builds an inference loop. onCluster, if non-nil, is invoked
// with every freshly compiled cluster (the orchestrator wires this to the
// Notifier's RelationsDiscovered event).
func NewLoop(cfg config.InferenceConfig, inferrer RelationInferrer, reg *registry.Registry, clusters *cluster.Cache, onCluster func(domain.Cluster), logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:       cfg,
		inferrer:  inferrer,
		registry:  reg,
		clusters:  clusters,
		onCluster: onCluster,
		logger:    logger.With("component", "inference-loop"),
	}
}

// Run blocks until ctx is cancelled, running one pass immediately and
// then every ScanIntervalSeconds.
func (l *Loop) Run(ctx context.Context) {
	if l.inferrer == nil || !l.cfg.Enabled {
		return
	}

	interval := time.Duration(l.cfg.ScanIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	l.pass(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.pass(ctx)
		}
	}
}

func (l *Loop) pass(ctx context.Context) {
	markets := l.registry.All()
	batchSize := l.cfg.BatchSize
	if batchSize <= 0 || batchSize > len(markets) {
		batchSize = len(markets)
	}
	batch := markets[:batchSize]
	if len(batch) < 2 {
		return
	}

	relations, err := l.inferrer.Infer(ctx, batch)
	if err != nil {
		l.logger.Warn("inference pass failed", "error", err)
		return
	}
	if len(relations) == 0 {
		return
	}

	now := time.Now()
	for _, group := range groupByComponent(relations) {
		c, err := cluster.CompileCluster(ids.NewClusterId(), group, now)
		if err != nil {
			l.logger.Warn("failed to compile cluster from inferred relations", "error", err)
			continue
		}
		l.clusters.Put(c)
		if l.onCluster != nil {
			l.onCluster(c)
		}
	}
}

// groupByComponent partitions relations into connected components keyed
// by shared market references, via union-find over market IDs.
func groupByComponent(relations []domain.Relation) [][]domain.Relation {
	parent := make(map[ids.MarketId]ids.MarketId)

	var find func(ids.MarketId) ids.MarketId
	find = func(m ids.MarketId) ids.MarketId {
		p, ok := parent[m]
		if !ok {
			parent[m] = m
			return m
		}
		if p != m {
			parent[m] = find(p)
		}
		return parent[m]
	}
	union := func(a, b ids.MarketId) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	relMarkets := make([][]ids.MarketId, len(relations))
	for i, rel := range relations {
		ms := rel.Kind.MarketIDs()
		relMarkets[i] = ms
		for _, m := range ms {
			find(m)
		}
		for j := 1; j < len(ms); j++ {
			union(ms[0], ms[j])
		}
	}

	groups := make(map[ids.MarketId][]domain.Relation)
	for i, rel := range relations {
		ms := relMarkets[i]
		if len(ms) == 0 {
			continue
		}
		root := find(ms[0])
		groups[root] = append(groups[root], rel)
	}

	out := make([][]domain.Relation, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}
