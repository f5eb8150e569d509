package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Issue concurrent requests while access tokens keep expiring",
	Long: `Start the in-process backend, log in once, then issue loadtest.requests
calls from loadtest.workers goroutines sharing one client. Every
loadtest.expire_every the backend expires all access tokens. The report
compares expiry events against refreshes actually sent.`,
	RunE: runLoadtest,
}

func init() {
	loadtestCmd.Flags().Int("workers", 0, "Concurrent workers (overrides loadtest.workers)")
	loadtestCmd.Flags().Int("requests", 0, "Total requests (overrides loadtest.requests)")
}

type loadtestReport struct {
	total           time.Duration
	ops             int
	failures        int64
	expirations     int64
	refreshes       uint64
	serverRefreshes int64
	reuse           int64
	p50             time.Duration
	p95             time.Duration
	p99             time.Duration
	opsPerS         float64
}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	lc := cfg.Loadtest
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		lc.Workers = n
	}
	if n, _ := cmd.Flags().GetInt("requests"); n > 0 {
		lc.Requests = n
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sc := cfg.Server
	sc.Addr = "127.0.0.1:0"
	b, err := startBackend(sc, log)
	if err != nil {
		return err
	}
	defer func() { _ = b.Shutdown(context.Background()) }()

	client, err := newClient(cfg, b.URL(), log)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Client.MetricsAddr != "" {
		if err := serveMetrics(ctx, cfg.Client.MetricsAddr, client, log); err != nil {
			return err
		}
	}

	if err := login(ctx, client, cfg); err != nil {
		return err
	}

	report, err := runLoad(ctx, client, lc, b.api.ExpireAccess)
	if err != nil {
		return err
	}
	report.serverRefreshes = b.api.RefreshCalls()
	report.reuse = b.api.ReuseDetected()

	printReport(cmd.OutOrStdout(), report)
	return nil
}

// runLoad drives lc.Requests calls through client. expire is called every
// lc.ExpireEvery while the load runs.
func runLoad(ctx context.Context, client *goAuthClient.Client, lc LoadtestConfig, expire func()) (loadtestReport, error) {
	limit := rate.Inf
	if lc.Rate > 0 {
		limit = rate.Limit(lc.Rate)
	}
	limiter := rate.NewLimiter(limit, lc.Workers)

	var (
		cursor      int64
		failures    atomic.Int64
		expirations atomic.Int64
		mu          sync.Mutex
		latencies   = make([]time.Duration, 0, lc.Requests)
	)

	loadCtx, stopExpiry := context.WithCancel(ctx)
	defer stopExpiry()
	if lc.ExpireEvery > 0 && expire != nil {
		go func() {
			ticker := time.NewTicker(lc.ExpireEvery)
			defer ticker.Stop()
			for {
				select {
				case <-loadCtx.Done():
					return
				case <-ticker.C:
					expire()
					expirations.Add(1)
				}
			}
		}()
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(loadCtx)
	for w := 0; w < lc.Workers; w++ {
		g.Go(func() error {
			for {
				i := atomic.AddInt64(&cursor, 1) - 1
				if i >= int64(lc.Requests) {
					return nil
				}
				if err := limiter.Wait(gctx); err != nil {
					return err
				}

				t0 := time.Now()
				err := client.Get(gctx, lc.Path, nil)
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
					if goAuthClient.IsRefreshFailure(err) {
						return fmt.Errorf("session lost during load: %w", err)
					}
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	err := g.Wait()
	total := time.Since(start)
	stopExpiry()

	report := computeReport(total, latencies, failures.Load())
	report.expirations = expirations.Load()
	report.refreshes = client.Refreshes()
	return report, err
}

func computeReport(total time.Duration, samples []time.Duration, failures int64) loadtestReport {
	if len(samples) == 0 {
		return loadtestReport{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return loadtestReport{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printReport(w io.Writer, r loadtestReport) {
	fmt.Fprintln(w, "---- results ----")
	fmt.Fprintf(w, "requests: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		r.ops,
		r.failures,
		r.total.Round(time.Millisecond),
		r.opsPerS,
		r.p50.Round(time.Microsecond),
		r.p95.Round(time.Microsecond),
		r.p99.Round(time.Microsecond),
	)
	fmt.Fprintf(w, "session: expirations=%d client_refreshes=%d server_refreshes=%d reuse_detected=%d\n",
		r.expirations,
		r.refreshes,
		r.serverRefreshes,
		r.reuse,
	)
}
