package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAuthClient/apitest"
	"github.com/MrEthical07/goAuthClient/jwt"
)

// backend is an apitest.Server bound to a listener.
type backend struct {
	api *apitest.Server
	srv *http.Server
	ln  net.Listener
	rdb redis.UniversalClient
}

// startBackend starts apitest on sc.Addr. An empty RedisAddr uses the
// embedded miniredis.
func startBackend(sc ServerConfig, logger *slog.Logger) (*backend, error) {
	var rdb redis.UniversalClient
	if sc.RedisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{sc.RedisAddr}})
	}

	api, err := apitest.New(apitest.Config{
		Redis:          rdb,
		AccessTTL:      sc.AccessTTL,
		SigningMethod:  jwt.SigningMethod(sc.SigningMethod),
		ExpiredStatus:  sc.ExpiredStatus,
		ExpiredMessage: sc.ExpiredMessage,
		Users:          map[string]string{sc.Username: sc.Password},
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	api.SetRefreshDelay(sc.RefreshDelay)

	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		api.Close()
		return nil, fmt.Errorf("listen %s: %w", sc.Addr, err)
	}

	b := &backend{
		api: api,
		srv: &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second},
		ln:  ln,
		rdb: rdb,
	}
	go func() {
		if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("backend stopped", "error", err)
		}
	}()
	return b, nil
}

func (b *backend) URL() string {
	return "http://" + b.ln.Addr().String()
}

func (b *backend) Shutdown(ctx context.Context) error {
	err := b.srv.Shutdown(ctx)
	b.api.Close()
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
	return err
}
