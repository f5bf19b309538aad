package api

import (
	"time"

	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/market"
)

// MarketSnapshotProvider is the read-only view the dashboard needs of the
// running engine. The orchestrator implements this directly so the API
// package never reaches into engine internals.
type MarketSnapshotProvider interface {
	GetMarketsSnapshot() []MarketStatus
	GetPositionsSnapshot() []PositionSnapshot
	GetRiskSnapshot() RiskSnapshot
	GetPoolSnapshot() PoolSnapshot
	GetScannerStats() market.Stats
	DashboardEvents() <-chan DashboardEvent
}

// BuildSnapshot aggregates state from every component into one dashboard
// snapshot.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) DashboardSnapshot {
	scanner := provider.GetScannerStats()

	return DashboardSnapshot{
		Timestamp: time.Now(),
		Markets:   provider.GetMarketsSnapshot(),
		Positions: provider.GetPositionsSnapshot(),
		Risk:      provider.GetRiskSnapshot(),
		Pool:      provider.GetPoolSnapshot(),
		Scanner: ScannerInfo{
			LastScanTime:    scanner.LastScanAt,
			MarketsScanned:  scanner.Scanned,
			MarketsFiltered: scanner.Filtered,
			MarketsSelected: scanner.Discovered,
		},
		Config: NewConfigSummary(cfg),
	}
}
