// Package exec turns sized opportunities into ordered, fallback-aware
// execution plans and drives them against platform adapters.
package exec

import (
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// defaultLatency stands in for platforms with no recorded samples.
const defaultLatency = 100 * time.Millisecond

// maxLatencySamples bounds the per-platform rolling window.
const maxLatencySamples = 100

// LatencyMonitor keeps a rolling window of order round-trip times per
// platform. Safe for concurrent use.
type LatencyMonitor struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
}

func NewLatencyMonitor() *LatencyMonitor {
	return &LatencyMonitor{samples: make(map[string][]time.Duration)}
}

// Record appends one round-trip observation.
func (m *LatencyMonitor) Record(platform string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := append(m.samples[platform], d)
	if len(window) > maxLatencySamples {
		window = window[len(window)-maxLatencySamples:]
	}
	m.samples[platform] = window
}

// Avg returns the rolling average, or the default when nothing is recorded.
func (m *LatencyMonitor) Avg(platform string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := m.samples[platform]
	if len(window) == 0 {
		return defaultLatency
	}
	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	return sum / time.Duration(len(window))
}

// Metrics summarizes the window with average and upper percentiles.
func (m *LatencyMonitor) Metrics(platform string) domain.LatencyMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.samples[platform]
	out := domain.LatencyMetrics{Platform: platform, Samples: len(window)}
	if len(window) == 0 {
		out.Avg, out.P95, out.P99 = defaultLatency, defaultLatency, defaultLatency
		return out
	}

	sorted := make([]time.Duration, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	out.Avg = sum / time.Duration(len(sorted))
	out.P95 = percentile(sorted, 0.95)
	out.P99 = percentile(sorted, 0.99)
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
