package governor

import (
	"math"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// latencySummary is exposed for external scraping alongside the
// in-process reservoir Percentiles reads from. The local reservoir stays
// because a scrape interval is too coarse to drive a ten-second scaling
// check.
var latencySummary = prometheus.NewSummary(prometheus.SummaryOpts{
	Namespace:  "edgelord",
	Subsystem:  "governor",
	Name:       "execution_latency_ms",
	Help:       "Observed end-to-end execution latency in milliseconds.",
	Objectives: map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001},
})

func init() {
	prometheus.MustRegister(latencySummary)
}

// Reservoir is a fixed-window latency percentile tracker: it keeps the
// last windowSize observations and computes percentiles over them on
// demand.
type Reservoir struct {
	mu         sync.Mutex
	samples    []float64
	windowSize int
	next       int
	filled     bool
}

// NewReservoir constructs a Reservoir holding up to windowSize samples.
func NewReservoir(windowSize int) *Reservoir {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Reservoir{windowSize: windowSize}
}

// Observe records one latency sample in milliseconds.
func (r *Reservoir) Observe(ms float64) {
	latencySummary.Observe(ms)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) < r.windowSize {
		r.samples = append(r.samples, ms)
	} else {
		r.samples[r.next] = ms
		r.filled = true
	}
	r.next = (r.next + 1) % r.windowSize
}

// Percentiles computes p50/p95/p99 over the current window. An empty
// window reports all zeros.
func (r *Reservoir) Percentiles() (p50, p95, p99 float64) {
	r.mu.Lock()
	sorted := append([]float64(nil), r.samples...)
	r.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
