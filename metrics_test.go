package goAuthClient

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRefreshStarted)

	if got := m.Value(MetricRefreshStarted); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRequests)
	m.Observe(MetricRefreshLatency, time.Second)
	if m.Value(MetricRequests) != 0 || m.Enabled() {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshWaiters)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshWaiters); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricRefreshLatency, d)
	}
	// Only the refresh latency metric has a histogram.
	m.Observe(MetricRequests, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricRefreshLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
	if _, ok := m.Snapshot().Histograms[MetricRequests]; ok {
		t.Fatal("unexpected histogram for MetricRequests")
	}
}

func TestMetricsLatencyDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRefreshLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricRefreshLatency]; ok {
		t.Fatal("histogram must be absent when latency is disabled")
	}
}

func TestMetricIDNames(t *testing.T) {
	seen := map[string]bool{}
	for _, id := range MetricIDs() {
		name := id.String()
		if name == "" || name == "unknown" || seen[name] {
			t.Fatalf("bad or duplicate name %q for id %d", name, id)
		}
		seen[name] = true
	}
	if MetricID(999).String() != "unknown" {
		t.Fatal("out-of-range id must be unknown")
	}
}
