package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricRequests, Name: "goauthclient_requests_total", Help: "Calls made through Execute."},
	{ID: goAuthClient.MetricRequestFailures, Name: "goauthclient_request_failures_total", Help: "Execute calls that returned an error."},
	{ID: goAuthClient.MetricExpiredDetected, Name: "goauthclient_expired_detected_total", Help: "Attempts rejected with a credential-expired signature."},
	{ID: goAuthClient.MetricRefreshStarted, Name: "goauthclient_refresh_started_total", Help: "Refresh calls sent."},
	{ID: goAuthClient.MetricRefreshSucceeded, Name: "goauthclient_refresh_succeeded_total", Help: "Refreshes that renewed the credential."},
	{ID: goAuthClient.MetricRefreshFailed, Name: "goauthclient_refresh_failed_total", Help: "Refreshes that failed or timed out."},
	{ID: goAuthClient.MetricRefreshWaiters, Name: "goauthclient_refresh_waiters_total", Help: "Calls queued behind an in-flight refresh."},
	{ID: goAuthClient.MetricRetriesIssued, Name: "goauthclient_retries_issued_total", Help: "Requests replayed after a refresh."},
	{ID: goAuthClient.MetricRetryExhausted, Name: "goauthclient_retry_exhausted_total", Help: "Replays rejected as expired again."},
	{ID: goAuthClient.MetricPassthroughFailures, Name: "goauthclient_passthrough_failures_total", Help: "Failures returned without a refresh."},
	{ID: goAuthClient.MetricSessionEnded, Name: "goauthclient_session_ended_total", Help: "Failed refresh generations."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "Logout calls."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Refresh duration from start to settle."},
}

// AuditDroppedName and AuditDroppedHelp describe the audit drop counter.
const (
	AuditDroppedName = "goauthclient_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped on a full dispatcher buffer."
)

// HistogramBounds are the bucket upper bounds as label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the same bounds usable in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// HistogramBoundSeconds returns the finite bucket bounds in seconds.
func HistogramBoundSeconds() []float64 {
	out := make([]float64, len(goAuthClient.HistogramBucketBounds))
	for i, ms := range goAuthClient.HistogramBucketBounds {
		out[i] = float64(ms) / 1000
	}
	return out
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
