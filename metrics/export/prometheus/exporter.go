package prometheus

import (
	"errors"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrNilSource is returned when the exporter has nothing to read from.
var ErrNilSource = errors.New("nil metrics source")

type metricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
}

// waitingSource is implemented by *goAuthClient.Client.
type waitingSource interface {
	Waiting() int
}

// Collector is a prometheus.Collector over a client's metrics snapshot. Every
// scrape reads one fresh snapshot.
type Collector struct {
	source metricsSource

	counters     []*prometheus.Desc
	histograms   []*prometheus.Desc
	auditDropped *prometheus.Desc
	waiting      *prometheus.Desc
}

// NewCollector reads from client.
func NewCollector(client *goAuthClient.Client) (*Collector, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewCollectorFromSource(client)
}

// NewCollectorFromSource reads from any snapshot source.
func NewCollectorFromSource(source metricsSource) (*Collector, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	c := &Collector{
		source:     source,
		counters:   make([]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histograms: make([]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(
			internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil,
		),
	}
	for i, def := range internaldefs.CounterDefs {
		c.counters[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.HistogramDefs {
		c.histograms[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	if _, ok := source.(waitingSource); ok {
		c.waiting = prometheus.NewDesc(
			"goauthclient_refresh_waiting",
			"Calls currently queued behind the in-flight refresh.",
			nil, nil,
		)
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	for _, d := range c.histograms {
		ch <- d
	}
	ch <- c.auditDropped
	if c.waiting != nil {
		ch <- c.waiting
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.counters[i], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	bounds := internaldefs.HistogramBoundSeconds()
	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(bounds))
		for j, le := range bounds {
			buckets[le] = cumulative[j]
		}
		// Snapshots keep bucket counts only, so the sum is not available.
		ch <- prometheus.MustNewConstHistogram(c.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))

	if c.waiting != nil {
		ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(c.source.(waitingSource).Waiting()))
	}
}

// Handler serves c from a private registry, leaving the global registry
// untouched.
func (c *Collector) Handler() (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
