package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goAuthClient/internal/logger"
)

func TestRunLoadSharesRefreshes(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Server.Addr = "127.0.0.1:0"

	b, err := startBackend(cfg.Server, logger.Discard())
	require.NoError(t, err)
	defer func() { _ = b.Shutdown(context.Background()) }()

	client, err := newClient(cfg, b.URL(), logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, login(context.Background(), client, cfg))

	// One expiry before the load: every worker trips over it at once.
	b.api.ExpireAccess()
	report, err := runLoad(context.Background(), client, LoadtestConfig{
		Workers:  32,
		Requests: 32,
		Path:     "/user/profile",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 32, report.ops)
	assert.GreaterOrEqual(t, report.refreshes, uint64(1))
	assert.Less(t, report.refreshes, uint64(32), "concurrent expiries must share refreshes")
	assert.Equal(t, int64(0), b.api.ReuseDetected())
}

func TestComputeReportPercentiles(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	r := computeReport(time.Second, samples, 2)

	assert.Equal(t, 100, r.ops)
	assert.Equal(t, int64(2), r.failures)
	assert.Equal(t, 50*time.Millisecond, r.p50)
	assert.Equal(t, 95*time.Millisecond, r.p95)
	assert.InDelta(t, 100.0, r.opsPerS, 0.001)
}
