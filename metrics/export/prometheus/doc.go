// Package prometheus exposes goAuthClient counters through
// github.com/prometheus/client_golang.
//
// [NewCollector] returns a prometheus.Collector that turns each scrape into a
// fresh Client.MetricsSnapshot: goauthclient_*_total counters, the
// goauthclient_refresh_latency_seconds histogram, the audit drop counter and
// the current queue depth. Register it with any registry, or use
// [Collector.Handler] for a self-contained /metrics handler.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate client state.
package prometheus
