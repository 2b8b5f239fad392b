// Package cmd implements the pomoc command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pomoc-ai/pomoc/internal/config"
	"github.com/pomoc-ai/pomoc/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "pomoc",
	Short: "pomoc - customer support answer pipeline",
	Long: `pomoc answers customer-support questions for a Polish online shop.

It retrieves context from an indexed knowledge base (FAQ, regulations,
recorded dialogs), generates an answer, and runs guardrail checks before
anything reaches the customer.

Commands:
  pomoc index        build the vector index from the knowledge files
  pomoc ask "..."    answer a single question
  pomoc serve        run the HTTP gateway`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger builds the process logger. DEBUG in the environment switches
// to debug level.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	logger := log.New(cfg)
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads and validates configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
