package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pomoc-ai/pomoc/api"
	"github.com/pomoc-ai/pomoc/internal/app"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := initLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer closeApp(a, logger)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ServerAddr
	}

	srv := api.NewServer(a.Pipeline, readyCheck(a), logger.With("component", "api"))
	return srv.Run(ctx, addr)
}

// readyCheck builds the readiness probe for the configured index backend:
// the postgres backend pings the pool, the memory backend requires a loaded
// snapshot.
func readyCheck(a *app.App) api.ReadyFunc {
	if a.DBPool != nil {
		return func(ctx context.Context) error { return a.DBPool.Ping(ctx) }
	}
	flat := a.Flat
	return func(context.Context) error {
		if flat == nil || flat.Len() == 0 {
			return errors.New("index snapshot empty, run 'pomoc index'")
		}
		return nil
	}
}
