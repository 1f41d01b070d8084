package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for Sentinel.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Risk scanner for EVM smart contracts",
		Long: `Sentinel detects potential rug pulls, honeypots and risky Solidity code.

It fetches the verified source of a contract from Blockscout, scores it
against risky patterns (mint, blacklist, tx.origin, ...) and inspects the
deployed contract over JSON-RPC (token name, owner, transfer function).

Supported chains: ethereum (eth), bsc (bnb) and polygon (matic).`,
		Version:       currentBuild().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .sentinel in current or home directory)")
	cmd.PersistentFlags().String("proxy", "",
		"SOCKS5 proxy for all outbound requests (host:port)")
	cmd.PersistentFlags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewScoreCmd())
	cmd.AddCommand(NewLastCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewBotCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
