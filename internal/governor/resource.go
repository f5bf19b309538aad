package governor

import "runtime"

// MemoryMonitor implements UtilizationSource over the Go runtime's own
// heap accounting: Utilization() is the fraction of BudgetBytes currently
// allocated, read fresh on every call rather than sampled on a timer.
type MemoryMonitor struct {
	BudgetBytes uint64
}

// NewMemoryMonitor builds a MemoryMonitor against budgetBytes.
func NewMemoryMonitor(budgetBytes uint64) *MemoryMonitor {
	return &MemoryMonitor{BudgetBytes: budgetBytes}
}

// Utilization returns heap-in-use divided by the configured budget,
// uncapped (a governor reading > 1.0 is a legitimate "we're over
// budget" signal, not an error).
func (m *MemoryMonitor) Utilization() float64 {
	if m.BudgetBytes == 0 {
		return 0
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc) / float64(m.BudgetBytes)
}
