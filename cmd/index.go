package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pomoc-ai/pomoc/internal/app"
	"github.com/pomoc-ai/pomoc/internal/log"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the knowledge files",
	Long: `index loads the knowledge files from the configured data directory,
splits them into chunks, embeds every chunk, and replaces the contents of
the configured index backend. The memory backend persists the snapshot to
the index path; the postgres backend replaces the chunks table.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
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

	count, err := a.RebuildIndex(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d chunks (%s backend)\n", count, cfg.IndexBackend)
	return nil
}

func closeApp(a *app.App, logger log.Logger) {
	if err := a.Close(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
