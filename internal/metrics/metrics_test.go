package metrics

import (
	"testing"
	"time"
)

func TestNew_StartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValue_SnapshotSafe(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s.Events.Pseudonymizer != 0 {
		t.Errorf("expected 0 pseudonymizer events, got %d", s.Events.Pseudonymizer)
	}
}

func TestEventCounters(t *testing.T) {
	m := New()
	m.PseudonymizerEvents.Add(10)
	m.ClustererEvents.Add(7)

	s := m.Snapshot()
	if s.Events.Pseudonymizer != 10 {
		t.Errorf("Pseudonymizer: got %d, want 10", s.Events.Pseudonymizer)
	}
	if s.Events.Clusterer != 7 {
		t.Errorf("Clusterer: got %d, want 7", s.Events.Clusterer)
	}
}

func TestRecordClusterable(t *testing.T) {
	m := New()
	m.RecordClusterable(true)
	m.RecordClusterable(true)
	m.RecordClusterable(false)

	s := m.Snapshot()
	if s.Clusterability.Clusterable != 2 {
		t.Errorf("Clusterable: got %d, want 2", s.Clusterability.Clusterable)
	}
	if s.Clusterability.NonClusterable != 1 {
		t.Errorf("NonClusterable: got %d, want 1", s.Clusterability.NonClusterable)
	}
}

func TestCacheCounters(t *testing.T) {
	m := New()
	m.CacheHits.Add(5)
	m.CacheMisses.Add(3)

	s := m.Snapshot()
	if s.Cache.Hits != 5 {
		t.Errorf("Hits: got %d, want 5", s.Cache.Hits)
	}
	if s.Cache.Misses != 3 {
		t.Errorf("Misses: got %d, want 3", s.Cache.Misses)
	}
}

func TestPseudonymsEmittedAndProcessingErrors(t *testing.T) {
	m := New()
	m.PseudonymsEmitted.Add(4)
	m.ProcessingErrors.Add(1)

	s := m.Snapshot()
	if s.PseudonymsEmitted != 4 {
		t.Errorf("PseudonymsEmitted: got %d, want 4", s.PseudonymsEmitted)
	}
	if s.ProcessingErrors != 1 {
		t.Errorf("ProcessingErrors: got %d, want 1", s.ProcessingErrors)
	}
}

func TestRecordPseudonymizeLatency_SingleSample(t *testing.T) {
	m := New()
	m.RecordPseudonymizeLatency(100 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.PseudonymizeMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.PseudonymizeMs.Count)
	}
	if s.Latency.PseudonymizeMs.MinMs < 90 || s.Latency.PseudonymizeMs.MinMs > 110 {
		t.Errorf("MinMs: got %f, want ~100", s.Latency.PseudonymizeMs.MinMs)
	}
}

func TestRecordClusterLatency_MinMaxMean(t *testing.T) {
	m := New()
	m.RecordClusterLatency(50 * time.Millisecond)
	m.RecordClusterLatency(150 * time.Millisecond)
	m.RecordClusterLatency(100 * time.Millisecond)

	s := m.Snapshot()
	ls := s.Latency.ClusterMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs > 60 {
		t.Errorf("MinMs too high: %f", ls.MinMs)
	}
	if ls.MaxMs < 140 {
		t.Errorf("MaxMs too low: %f", ls.MaxMs)
	}
	if ls.MeanMs < 90 || ls.MeanMs > 110 {
		t.Errorf("MeanMs: got %f, want ~100", ls.MeanMs)
	}
}

func TestSnapshotLatency_EmptyIsZeroValue(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if s.Latency.PseudonymizeMs.Count != 0 {
		t.Errorf("empty pseudonymize latency count should be 0")
	}
	if s.Latency.ClusterMs.Count != 0 {
		t.Errorf("empty cluster latency count should be 0")
	}
}

func TestSnapshot_UptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	s := m.Snapshot()
	if s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got := round2(c.input)
		if got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStats_Record(t *testing.T) {
	var s latencyStats
	s.record(10)
	s.record(20)
	s.record(15)

	snap := s.snapshot()
	if snap.Count != 3 {
		t.Errorf("Count: got %d, want 3", snap.Count)
	}
	if snap.MinMs != 10 {
		t.Errorf("MinMs: got %f, want 10", snap.MinMs)
	}
	if snap.MaxMs != 20 {
		t.Errorf("MaxMs: got %f, want 20", snap.MaxMs)
	}
	if snap.MeanMs != 15 {
		t.Errorf("MeanMs: got %f, want 15", snap.MeanMs)
	}
}

func TestLatencyStats_Empty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
