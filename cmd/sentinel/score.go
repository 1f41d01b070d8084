package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/scanner"
)

// NewScoreCmd creates the score command.
func NewScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <address...>",
		Short: "Print the risk score of contracts without on-chain checks",
		Long: `Score runs only the static source analysis and prints one line per
contract. It is faster than scan, makes no RPC calls and stores nothing.

Examples:
  sentinel score 0xdAC17F958D2ee523a2206206994597C13D831ec7
  sentinel score --chain polygon 0xc2132D05D31c914a87C6611C10748AEb04B58e8F
  sentinel score --json bsc:0x55d398326f99059fF775485246999027B3197955`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScoreCmd,
	}

	addChainFlag(cmd)
	addNetworkFlags(cmd)
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent scans")
	addOutputFlags(cmd)

	return cmd
}

// runScoreCmd executes the score command.
func runScoreCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	// Scores are never persisted; the database is still used as source cache.
	cfg.SaveReport = false

	if err := cfg.ValidateScan(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, scanner.ModeScore, cmd.OutOrStdout(), logger)
}
