package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot goAuthClient.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

type waitingFakeSource struct {
	fakeSource
	waiting int
}

func (f waitingFakeSource) Waiting() int { return f.waiting }

func TestCollectorGathers(t *testing.T) {
	col, err := NewCollectorFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricRefreshStarted: 2,
				goAuthClient.MetricRefreshWaiters: 7,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 0, 2, 0, 0, 0, 0, 1},
			},
		},
		dropped: 3,
	})
	if err != nil {
		t.Fatalf("NewCollectorFromSource: %v", err)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(col); err != nil {
		t.Fatalf("Register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	counters := make(map[string]float64)
	var histCount uint64
	var buckets int
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counters[mf.GetName()] = c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				histCount = h.GetSampleCount()
				buckets = len(h.GetBucket())
			}
		}
	}

	if counters["goauthclient_refresh_started_total"] != 2 {
		t.Fatalf("expected refresh_started=2, got %v", counters["goauthclient_refresh_started_total"])
	}
	if counters["goauthclient_refresh_waiters_total"] != 7 {
		t.Fatalf("expected refresh_waiters=7, got %v", counters["goauthclient_refresh_waiters_total"])
	}
	if counters["goauthclient_audit_dropped_total"] != 3 {
		t.Fatalf("expected audit_dropped=3, got %v", counters["goauthclient_audit_dropped_total"])
	}
	if histCount != 4 {
		t.Fatalf("expected histogram count 4, got %d", histCount)
	}
	if buckets != 7 {
		t.Fatalf("expected 7 finite buckets, got %d", buckets)
	}
}

func TestCollectorWaitingGauge(t *testing.T) {
	col, err := NewCollectorFromSource(waitingFakeSource{waiting: 5})
	if err != nil {
		t.Fatalf("NewCollectorFromSource: %v", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(col)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "goauthclient_refresh_waiting" {
			if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 5 {
				t.Fatalf("expected waiting=5, got %v", got)
			}
			return
		}
	}
	t.Fatal("waiting gauge not exported")
}

func TestNilSource(t *testing.T) {
	if _, err := NewCollectorFromSource(nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewCollector(nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	col, err := NewCollectorFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{goAuthClient.MetricRequests: 1},
		},
	})
	if err != nil {
		t.Fatalf("NewCollectorFromSource: %v", err)
	}
	h, err := col.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "goauthclient_requests_total 1") {
		t.Fatalf("expected requests counter in body:\n%s", rec.Body.String())
	}
}
