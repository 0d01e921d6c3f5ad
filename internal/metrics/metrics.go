// Package metrics provides lightweight, lock-minimal performance counters
// for the Pseudonymizer and Clusterer processors.
//
// Counters use sync/atomic so the processing hot path incurs no mutex
// contention. Latency statistics use a single mutex per processor; they
// are updated at most once per Process call.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all runtime counters for a running processor pipeline.
// The zero value is valid and ready to use; prefer New() for clarity.
type Metrics struct {
	// Event counters
	PseudonymizerEvents atomic.Int64
	ClustererEvents     atomic.Int64

	// Clusterability gate outcomes (SPEC_FULL.md §4.3)
	ClusterableEvents    atomic.Int64
	NonClusterableEvents atomic.Int64

	// Pseudonymizer cache outcomes
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	// Side-channel emission volume
	PseudonymsEmitted atomic.Int64

	// Errors (SPEC_FULL.md §7 ProcessingError: logged, never fatal)
	ProcessingErrors atomic.Int64

	// Latency statistics (mutex-guarded because they accumulate floats)
	pseudonymizeMu   sync.Mutex
	pseudonymizeStat latencyStats

	clusterMu   sync.Mutex
	clusterStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordPseudonymizeLatency records the duration of one Pseudonymizer.Process call.
func (m *Metrics) RecordPseudonymizeLatency(d time.Duration) {
	m.pseudonymizeMu.Lock()
	m.pseudonymizeStat.record(float64(d.Microseconds()) / 1000.0)
	m.pseudonymizeMu.Unlock()
}

// RecordClusterLatency records the duration of one Clusterer.Process call.
func (m *Metrics) RecordClusterLatency(d time.Duration) {
	m.clusterMu.Lock()
	m.clusterStat.record(float64(d.Microseconds()) / 1000.0)
	m.clusterMu.Unlock()
}

// RecordClusterable records one clusterability-gate outcome.
func (m *Metrics) RecordClusterable(clusterable bool) {
	if clusterable {
		m.ClusterableEvents.Add(1)
	} else {
		m.NonClusterableEvents.Add(1)
	}
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.pseudonymizeMu.Lock()
	pseudonymize := m.pseudonymizeStat.snapshot()
	m.pseudonymizeMu.Unlock()

	m.clusterMu.Lock()
	cluster := m.clusterStat.snapshot()
	m.clusterMu.Unlock()

	return Snapshot{
		Events: EventSnapshot{
			Pseudonymizer: m.PseudonymizerEvents.Load(),
			Clusterer:     m.ClustererEvents.Load(),
		},
		Clusterability: ClusterabilitySnapshot{
			Clusterable:    m.ClusterableEvents.Load(),
			NonClusterable: m.NonClusterableEvents.Load(),
		},
		Cache: CacheSnapshot{
			Hits:   m.CacheHits.Load(),
			Misses: m.CacheMisses.Load(),
		},
		PseudonymsEmitted: m.PseudonymsEmitted.Load(),
		ProcessingErrors:  m.ProcessingErrors.Load(),
		Latency: LatencyGroup{
			PseudonymizeMs: pseudonymize,
			ClusterMs:      cluster,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Events            EventSnapshot          `json:"events"`
	Clusterability    ClusterabilitySnapshot `json:"clusterability"`
	Cache             CacheSnapshot          `json:"cache"`
	PseudonymsEmitted int64                  `json:"pseudonymsEmitted"`
	ProcessingErrors  int64                  `json:"processingErrors"`
	Latency           LatencyGroup           `json:"latency"`
	UptimeSecs        float64                `json:"uptimeSecs"`
}

// EventSnapshot holds per-processor event-processed counters.
type EventSnapshot struct {
	Pseudonymizer int64 `json:"pseudonymizer"`
	Clusterer     int64 `json:"clusterer"`
}

// ClusterabilitySnapshot holds the clusterability-gate outcome counters.
type ClusterabilitySnapshot struct {
	Clusterable    int64 `json:"clusterable"`
	NonClusterable int64 `json:"nonClusterable"`
}

// CacheSnapshot holds Pseudonym Cache hit/miss counters.
type CacheSnapshot struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// LatencyGroup groups the two processors' latency dimensions.
type LatencyGroup struct {
	PseudonymizeMs LatencySnapshot `json:"pseudonymizeMs"`
	ClusterMs      LatencySnapshot `json:"clusterMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
