package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/apitest"
	promexport "github.com/MrEthical07/goAuthClient/metrics/export/prometheus"
)

// newClient builds a Client for baseURL whose expiry signature matches the
// backend configuration.
func newClient(c *Config, baseURL string, logger *slog.Logger) (*goAuthClient.Client, error) {
	cc := goAuthClient.DefaultConfig()
	cc.Transport.BaseURL = baseURL
	cc.Transport.RequestTimeout = c.Client.RequestTimeout
	cc.Transport.RefreshPath = c.Client.RefreshPath
	cc.Transport.UserAgent = "goauthclient-cli/" + Version
	cc.Expiry.Signatures = []goAuthClient.Signature{{
		Status:  c.Server.ExpiredStatus,
		Message: c.Server.ExpiredMessage,
	}}
	cc.Refresh.Timeout = c.Client.RefreshTimeout

	return goAuthClient.New().
		WithConfig(cc).
		WithLogger(logger).
		WithAuditSink(goAuthClient.SlogSink{Logger: logger}).
		WithSessionEndedHandler(func(err error) {
			logger.Error("session ended, log in again", "error", err)
		}).
		Build()
}

func login(ctx context.Context, client *goAuthClient.Client, c *Config) error {
	err := client.Post(ctx, c.Client.LoginPath, apitest.LoginRequest{
		Username: c.Server.Username,
		Password: c.Server.Password,
	}, nil)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// serveMetrics exposes the client's counters on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string, client *goAuthClient.Client, logger *slog.Logger) error {
	col, err := promexport.NewCollector(client)
	if err != nil {
		return err
	}
	handler, err := col.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("metrics listening", "url", "http://"+ln.Addr().String()+"/metrics")
	return nil
}
