package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/database"
	"github.com/nao1215/sentinel/internal/model"
)

// NewLastCmd creates the last command.
func NewLastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last [address]",
		Short: "Show the most recent stored scan report",
		Long: `Last prints the latest scan report stored in the database, without making
any network request. Without an address, the most recently scanned contract
is shown.

Examples:
  sentinel last
  sentinel last 0xdAC17F958D2ee523a2206206994597C13D831ec7
  sentinel last --chain bsc --markdown 0x55d398326f99059fF775485246999027B3197955`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLastCmd,
	}

	addChainFlag(cmd)
	addOutputFlags(cmd)

	return cmd
}

// runLastCmd executes the last command.
func runLastCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyChainFlag(cmd, cfg); err != nil {
		return err
	}
	if err := applyOutputFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	var address model.Address
	if len(args) == 1 {
		address, err = model.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("invalid contract address: %w", err)
		}
	}

	db, err := openHistoryDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	chain := cfg.Chain

	if len(args) == 0 {
		contracts, err := db.ListScannedContracts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list contracts: %w", err)
		}
		if len(contracts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scans stored yet. Use 'sentinel scan <address>' first.")
			return nil
		}
		address, chain = contracts[0].Address, contracts[0].Chain
	}

	rep, err := db.GetLatestScanReport(ctx, address, chain)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no stored scan for %s on %s", address, chain.Title())
	}
	if err != nil {
		return fmt.Errorf("failed to read scan history: %w", err)
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	_, err = newReportWriter(cfg, output).Write(rep)
	return err
}
