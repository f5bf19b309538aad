// Package orchestrator wires every subsystem (exchange, pool, registry,
// book cache, strategies, cluster detection, risk, executor, governor,
// inference, stats, notify) into the single running process: it owns
// construction order, the goroutines that move events between
// subsystems, and graceful shutdown. Config in, New builds every
// adapter, Start spawns goroutines tracked by a WaitGroup, Stop cancels
// and joins.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgelord/edgelord/internal/api"
	"github.com/edgelord/edgelord/internal/book"
	"github.com/edgelord/edgelord/internal/cluster"
	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/exchange"
	"github.com/edgelord/edgelord/internal/executor"
	"github.com/edgelord/edgelord/internal/governor"
	"github.com/edgelord/edgelord/internal/inference"
	"github.com/edgelord/edgelord/internal/market"
	"github.com/edgelord/edgelord/internal/notify"
	"github.com/edgelord/edgelord/internal/pool"
	"github.com/edgelord/edgelord/internal/registry"
	"github.com/edgelord/edgelord/internal/risk"
	"github.com/edgelord/edgelord/internal/store"
	"github.com/edgelord/edgelord/internal/strategy"
	"github.com/edgelord/edgelord/internal/subscription"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/money"
)

// defaultMemoryBudgetBytes bounds the governor's resource-utilization
// signal. There is no config field for it (a process that needs to tune
// this is sized very differently from the single-container deployment
// this budget targets) — 512MiB comfortably covers the registry, book
// cache, and cluster state this process holds in memory.
const defaultMemoryBudgetBytes = 512 * 1024 * 1024

// dashboardEventBuffer bounds how many undelivered dashboard events queue
// up before ChannelNotifier starts dropping them.
const dashboardEventBuffer = 256

// MarketDataStream is the market-data port the orchestrator consumes: a
// merged event stream with subscription control and health counters.
// internal/pool.Pool is the production implementation.
type MarketDataStream interface {
	Subscribe(ctx context.Context, tokens []ids.TokenId) error
	Events() <-chan domain.MarketEvent
	Stats() pool.PoolStats
	Close()
}

// Orchestrator owns every long-lived subsystem and the goroutines that
// connect them. It implements api.MarketSnapshotProvider directly (see
// snapshot.go).
type Orchestrator struct {
	cfg    config.Config
	logger *slog.Logger

	auth    *exchange.Auth
	client  *exchange.Client
	scanner *market.Scanner

	registry *registry.Registry
	books    *book.Cache
	clusters *cluster.Cache

	strategies   *strategy.Registry
	detectionSvc *cluster.DetectionService

	riskMgr *risk.Manager
	exec    *executor.Executor
	subs    *subscription.Manager

	reservoir  *governor.Reservoir
	memMonitor *governor.MemoryMonitor
	gov        *governor.Governor

	pool MarketDataStream

	posStore   *store.Store
	statsStore *store.StatsStore

	inferLoop *inference.Loop

	notifier    notify.Notifier
	dashboardCh chan api.DashboardEvent

	positionSeq atomic.Uint64
	execErrors  atomic.Int64

	discoveredMu sync.RWMutex
	discovered   []market.DiscoveredMarket

	positionsMu sync.RWMutex
	positions   map[ids.PositionId]domain.Position

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs every subsystem from cfg but starts nothing; call Start
// to begin running.
func New(cfg config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	auth, err := exchange.NewAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("build auth: %w", err)
	}
	client := exchange.NewClient(cfg, auth, logger)

	reg := registry.New()
	books := book.New(logger)
	clusters := cluster.NewCache()

	stratRegistry := strategy.NewRegistry(
		strategy.NewSingleCondition(strategy.SingleConditionConfig{
			MinEdge:   money.FromFloat(cfg.Strategy.SingleCondition.MinEdge),
			MinProfit: money.FromFloat(cfg.Strategy.SingleCondition.MinProfit),
		}),
		strategy.NewMarketRebalancing(strategy.MarketRebalancingConfig{
			MinEdge:   money.FromFloat(cfg.Strategy.MarketRebalancing.MinEdge),
			MinProfit: money.FromFloat(cfg.Strategy.MarketRebalancing.MinProfit),
		}),
	)

	var detectionSvc *cluster.DetectionService
	if cfg.Strategy.Combinatorial.Enabled {
		combinatorial := strategy.NewCombinatorial(strategy.CombinatorialConfig{
			MinGap: cfg.Strategy.Combinatorial.MinGap,
		})
		detectionSvc = cluster.NewDetectionService(cluster.Config{
			DebounceMs:          cfg.Strategy.Combinatorial.DebounceMs,
			MinGap:              cfg.Strategy.Combinatorial.MinGap,
			MaxClustersPerCycle: cfg.Strategy.Combinatorial.MaxClustersPerCycle,
			CacheTTL:            time.Hour,
		}, books, clusters, reg, combinatorial, 256, logger)
	}

	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionPerMarket: money.FromFloat(cfg.Risk.MaxPositionPerMarket),
		MaxTotalExposure:     money.FromFloat(cfg.Risk.MaxTotalExposure),
		MinProfitThreshold:   money.FromFloat(cfg.Risk.MinProfitThreshold),
	}, logger)

	exec := executor.New(client, executor.Config{ExecutionTimeoutSecs: cfg.Risk.ExecutionTimeoutSecs}, logger)

	maxSubs := cfg.Pool.MaxConnections * cfg.Pool.SubscriptionsPerConnection
	subs := subscription.New(maxSubs, logger)

	reservoir := governor.NewReservoir(1000)
	memMonitor := governor.NewMemoryMonitor(defaultMemoryBudgetBytes)
	gov := governor.New(cfg.Governor.ToGovernorConfig(), reservoir, memMonitor)

	connFactory := exchange.MarketConnFactory(cfg.API.WSMarketURL, logger)
	decoder := exchange.NewMarketDecoder(logger)
	p, err := pool.New(cfg.Pool.ToPoolConfig(cfg.Reconnect), connFactory, decoder, logger)
	if err != nil {
		return nil, fmt.Errorf("build connection pool: %w", err)
	}

	posStore, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open position store: %w", err)
	}
	statsStore, err := store.OpenStats(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open stats store: %w", err)
	}

	dashboardCh := make(chan api.DashboardEvent, dashboardEventBuffer)
	var dashboardNotifier notify.Notifier
	if cfg.Dashboard.Enabled {
		dashboardNotifier = notify.NewChannelNotifier(dashboardCh, logger)
	}
	notifier := notify.NewMulti(notify.NewLogNotifier(logger), dashboardNotifier)

	scanner := market.NewScanner(cfg, logger)

	o := &Orchestrator{
		cfg:          cfg,
		logger:       logger,
		auth:         auth,
		client:       client,
		scanner:      scanner,
		registry:     reg,
		books:        books,
		clusters:     clusters,
		strategies:   stratRegistry,
		detectionSvc: detectionSvc,
		riskMgr:      riskMgr,
		exec:         exec,
		subs:         subs,
		reservoir:    reservoir,
		memMonitor:   memMonitor,
		gov:          gov,
		pool:         p,
		posStore:     posStore,
		statsStore:   statsStore,
		notifier:     notifier,
		dashboardCh:  dashboardCh,
		positions:    make(map[ids.PositionId]domain.Position),
	}

	var inferrer inference.RelationInferrer
	if cfg.Inference.Enabled {
		inferrer = inference.NewFromConfig(cfg.Inference, cfg.Inference.BaseURL, cfg.Inference.APIKey, logger)
	}
	o.inferLoop = inference.NewLoop(cfg.Inference, inferrer, reg, clusters, o.onClusterDiscovered, logger)

	return o, nil
}

// Start bootstraps L2 credentials and the initial market set, then spawns
// every background goroutine. The returned error only reflects bootstrap
// failures; once goroutines are running, failures are logged and
// retried/recovered internally rather than propagated.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if !o.auth.HasL2Credentials() && !o.cfg.DryRun {
		if _, err := o.client.DeriveAPIKey(ctx); err != nil {
			cancel()
			return fmt.Errorf("derive L2 api key: %w", err)
		}
	}

	if err := o.restorePositions(); err != nil {
		cancel()
		return fmt.Errorf("restore positions: %w", err)
	}

	initial, err := o.scanner.FetchMarkets(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("initial market scan: %w", err)
	}
	o.ingestMarkets(ctx, initial)

	o.spawn(func() { o.scanner.Run(ctx) })
	o.spawn(func() { o.consumeScanResults(ctx) })
	o.spawn(func() { o.consumeMarketEvents(ctx) })
	o.spawn(func() { o.runDailySummary(ctx) })

	if o.detectionSvc != nil {
		o.spawn(func() { o.detectionSvc.Run(ctx) })
		o.spawn(func() { o.consumeClusterOpportunities(ctx) })
	}
	if o.cfg.Governor.Enabled {
		o.spawn(func() { o.runGovernor(ctx) })
	}
	if o.inferLoop != nil {
		o.spawn(func() { o.inferLoop.Run(ctx) })
	}

	return nil
}

// Stop cancels every background goroutine and waits for them to exit,
// then tears down the connection pool.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.pool.Close()
}

func (o *Orchestrator) spawn(fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}

// restorePositions reloads previously persisted positions on startup, so
// a restart doesn't lose track of open exposure, and seeds the risk
// manager and position-ID sequence from them.
func (o *Orchestrator) restorePositions() error {
	saved, err := o.posStore.LoadAll()
	if err != nil {
		return err
	}

	exposureByMarket := make(map[ids.MarketId]domain.Money)
	var maxID uint64
	o.positionsMu.Lock()
	for _, pos := range saved {
		o.positions[pos.ID] = pos
		if uint64(pos.ID) > maxID {
			maxID = uint64(pos.ID)
		}
		if _, closed := pos.Status.(domain.StatusClosed); !closed {
			exposureByMarket[pos.MarketID] = exposureByMarket[pos.MarketID].Add(pos.EntryCost)
		}
	}
	o.positionsMu.Unlock()

	o.positionSeq.Store(maxID)
	for marketID, exposure := range exposureByMarket {
		o.riskMgr.SetExposure(marketID, exposure)
	}
	if len(saved) > 0 {
		o.logger.Info("orchestrator: restored positions", "count", len(saved))
	}
	return nil
}

func (o *Orchestrator) newPositionID() ids.PositionId {
	return ids.PositionId(o.positionSeq.Add(1))
}

// TripBreaker activates the risk gate's circuit breaker and notifies.
// Every subsequent opportunity is rejected until ResetBreaker.
func (o *Orchestrator) TripBreaker(reason string) {
	o.riskMgr.Activate(reason)
	o.notifier.Notify(api.DashboardEvent{
		Type:      api.EventCircuitBreakerActivated,
		Timestamp: time.Now(),
		Data:      api.NewCircuitBreakerActivatedEvent(reason),
	})
}

// ResetBreaker clears the risk gate's circuit breaker and notifies.
func (o *Orchestrator) ResetBreaker() {
	o.riskMgr.Reset()
	o.execErrors.Store(0)
	o.notifier.Notify(api.DashboardEvent{
		Type:      api.EventCircuitBreakerReset,
		Timestamp: time.Now(),
		Data:      api.CircuitBreakerResetEvent{},
	})
}

// onClusterDiscovered is the inference loop's callback, fired with every
// freshly compiled cluster.
func (o *Orchestrator) onClusterDiscovered(c domain.Cluster) {
	o.notifier.Notify(api.DashboardEvent{
		Type:      api.EventRelationsDiscovered,
		Timestamp: time.Now(),
		Data:      api.NewRelationsDiscoveredEvent(c),
	})
}

// runDailySummary emits a rolled-up stats event once a day.
func (o *Orchestrator) runDailySummary(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counters := o.statsStore.Snapshot()
			o.notifier.Notify(api.DashboardEvent{
				Type:      api.EventDailySummary,
				Timestamp: time.Now(),
				Data: api.DailySummaryEvent{
					PeriodStart:         counters.PeriodStart,
					PeriodEnd:           time.Now(),
					OpportunitiesFound:  counters.OpportunitiesFound,
					ExecutionsAttempted: counters.ExecutionsAttempted,
					ExecutionsClosed:    counters.ExecutionsClosed,
					TotalProfit:         counters.TotalProfit,
					WinRate:             counters.WinRate(),
				},
			})
		}
	}
}
