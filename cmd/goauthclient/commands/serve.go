package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the test backend",
	Long: `Run the apitest backend: POST /auth/login, POST /auth/refresh-token,
POST /auth/logout and GET /user/profile, with Redis-backed rotating refresh
sessions. Without server.redis_addr an embedded Redis is used.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	sc := cfg.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		sc.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := startBackend(sc, log)
	if err != nil {
		return err
	}
	log.Info("backend listening", "url", b.URL(), "user", sc.Username)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.Shutdown(shutdownCtx)
}
