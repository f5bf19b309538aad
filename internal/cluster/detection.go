package cluster

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/edgelord/edgelord/internal/book"
	"github.com/edgelord/edgelord/internal/registry"
	"github.com/edgelord/edgelord/internal/strategy"
	"github.com/edgelord/edgelord/pkg/ids"
)

// Config tunes the debounced cluster detection loop.
type Config struct {
	DebounceMs          int64
	MinGap              float64
	MaxClustersPerCycle int
	CacheTTL            time.Duration
}

// ClusterOpportunity is one combinatorial detection's output, enriched with
// the cluster's member markets for downstream notification/logging.
type ClusterOpportunity struct {
	ClusterID ids.ClusterId
	Markets   []ids.MarketId
	Result    strategy.ClusterDetectionResult
}

// DetectionService debounces book-update notices into periodic combinatorial
// solves over whichever clusters changed since the last cycle.
type DetectionService struct {
	cfg      Config
	books    *book.Cache
	clusters *Cache
	registry *registry.Registry
	solver   *strategy.Combinatorial
	out      chan ClusterOpportunity
	logger   *slog.Logger

	dirtyMu sync.Mutex
	dirty   map[ids.ClusterId]struct{}

	solverStates map[ids.ClusterId][]float64
}

// NewDetectionService constructs a detection service wired to the shared
// book cache, cluster cache, and market registry. outCapacity sizes the
// outbound ClusterOpportunity channel.
func NewDetectionService(cfg Config, books *book.Cache, clusters *Cache, reg *registry.Registry, solver *strategy.Combinatorial, outCapacity int, logger *slog.Logger) *DetectionService {
	if logger == nil {
		logger = slog.Default()
	}
	if outCapacity <= 0 {
		outCapacity = 256
	}
	return &DetectionService{
		cfg:          cfg,
		books:        books,
		clusters:     clusters,
		registry:     reg,
		solver:       solver,
		out:          make(chan ClusterOpportunity, outCapacity),
		logger:       logger,
		dirty:        make(map[ids.ClusterId]struct{}),
		solverStates: make(map[ids.ClusterId][]float64),
	}
}

// Opportunities returns the channel ClusterOpportunity values are emitted
// on.
func (s *DetectionService) Opportunities() <-chan ClusterOpportunity {
	return s.out
}

// Run subscribes to book updates and drives the debounce ticker until ctx
// is cancelled.
func (s *DetectionService) Run(ctx context.Context) {
	notices := s.books.Subscribe()
	ticker := time.NewTicker(time.Duration(s.cfg.DebounceMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case token, ok := <-notices:
			if !ok {
				return
			}
			s.markDirty(token)
		case <-ticker.C:
			s.drainAndSolve()
		}
	}
}

func (s *DetectionService) markDirty(token ids.TokenId) {
	market, ok := s.registry.ByToken(token)
	if !ok {
		return
	}
	clusterID, ok := s.clusters.ClusterForMarket(market.MarketID)
	if !ok {
		return
	}
	s.dirtyMu.Lock()
	s.dirty[clusterID] = struct{}{}
	s.dirtyMu.Unlock()
}

func (s *DetectionService) drainAndSolve() {
	drained := s.drainDirty()
	for _, clusterID := range drained {
		s.solveOne(clusterID)
	}
}

// drainDirty removes and returns up to MaxClustersPerCycle dirty cluster
// IDs; anything beyond the cap stays dirty for the next cycle.
func (s *DetectionService) drainDirty() []ids.ClusterId {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()

	out := make([]ids.ClusterId, 0, s.cfg.MaxClustersPerCycle)
	for id := range s.dirty {
		if len(out) >= s.cfg.MaxClustersPerCycle {
			break
		}
		out = append(out, id)
		delete(s.dirty, id)
	}
	return out
}

func (s *DetectionService) solveOne(clusterID ids.ClusterId) {
	c, ok := s.clusters.Fresh(clusterID, s.cfg.CacheTTL, time.Now())
	if !ok {
		return
	}

	markets := make([]strategy.ClusterMarket, 0, len(c.Markets))
	for _, marketID := range c.Markets {
		m, ok := s.registry.ByMarket(marketID)
		if !ok || len(m.Outcomes) == 0 {
			return
		}
		token := m.Outcomes[0].TokenID
		b, ok := s.books.Get(token)
		if !ok {
			return
		}
		ask, ok := b.BestAsk()
		if !ok {
			return
		}
		markets = append(markets, strategy.ClusterMarket{
			MarketID: marketID,
			TokenID:  token,
			AskPrice: ask.Price,
			AskVol:   ask.Size,
		})
	}

	result, found := s.solver.DetectCluster(clusterIDQuestion(clusterID), clusterID, markets, c.Constraints, s.solverStates[clusterID])
	s.solverStates[clusterID] = result.SolverState
	if !found || result.Gap < s.cfg.MinGap {
		return
	}

	select {
	case s.out <- ClusterOpportunity{ClusterID: clusterID, Markets: c.Markets, Result: result}:
	default:
		s.logger.Warn("cluster detection: outbound channel full, dropping opportunity", "cluster_id", string(clusterID))
	}
}

func clusterIDQuestion(id ids.ClusterId) string {
	return "cluster " + string(id)
}
