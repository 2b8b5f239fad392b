package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pomoc-ai/pomoc/internal/app"
	"github.com/pomoc-ai/pomoc/internal/pipeline"
)

var (
	askCategory string
	askUserID   string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single customer question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCategory, "category", "", "restrict retrieval to a knowledge category")
	askCmd.Flags().StringVar(&askUserID, "user", "", "user identifier for consistent variant assignment")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	resp, err := a.Pipeline.Answer(ctx, pipeline.Query{
		Text:     strings.Join(args, " "),
		Category: askCategory,
		UserID:   askUserID,
	})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	printResponse(resp)
	return nil
}

func printResponse(resp pipeline.Response) {
	fmt.Println(resp.Answer)
	fmt.Println()
	fmt.Printf("  kategoria:  %s\n", resp.Category)
	fmt.Printf("  pewność:    %.2f\n", resp.Confidence)
	fmt.Printf("  model:      %s\n", resp.Model)
	if len(resp.Sources) > 0 {
		fmt.Printf("  źródła:     %s\n", strings.Join(resp.Sources, ", "))
	}
	if resp.Degraded {
		fmt.Println("  uwaga:      wyszukiwanie awaryjne (indeks niedostępny)")
	}
	if resp.RequiresHuman {
		fmt.Println("  uwaga:      wymaga weryfikacji przez konsultanta")
	}
	if resp.BlockedReason != "" {
		fmt.Printf("  blokada:    %s\n", resp.BlockedReason)
	}
}
