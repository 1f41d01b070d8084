package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/database"
	"github.com/nao1215/sentinel/internal/model"
	"github.com/nao1215/sentinel/internal/pipeline"
	"github.com/nao1215/sentinel/internal/report"
	"github.com/nao1215/sentinel/internal/scanner"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [address...]",
		Short: "Scan smart contracts for rug pull and honeypot risks",
		Long: `Scan fetches the verified source of each contract, scores it against
risky Solidity patterns and inspects the deployed contract over JSON-RPC.

Every full scan is saved as a JSON report under --report-dir and stored in
the local database for the last and compare commands.

A target may carry its own chain as "chain:address".

Examples:
  # Scan a token on Ethereum
  sentinel scan 0xdAC17F958D2ee523a2206206994597C13D831ec7

  # Scan on BNB Chain
  sentinel scan --chain bsc 0x55d398326f99059fF775485246999027B3197955

  # Scan several contracts on different chains
  sentinel scan eth:0xdAC17F958D2ee523a2206206994597C13D831ec7 polygon:0xc2132D05D31c914a87C6611C10748AEb04B58e8F

  # Output a Markdown report to a file
  sentinel scan --markdown -o report.md 0xdAC17F958D2ee523a2206206994597C13D831ec7

  # Use a private RPC endpoint
  ETH_RPC_URL=https://mainnet.example.org/v3/KEY sentinel scan 0x...`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	addChainFlag(cmd)
	addNetworkFlags(cmd)

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent scans")

	// Report flags
	addOutputFlags(cmd)
	cmd.Flags().Bool("no-save", false,
		"Do not save JSON reports or store results in the database")
	cmd.Flags().String("report-dir", config.DefaultReportDir,
		"Directory for saved JSON reports")
	cmd.Flags().String("rpc-url", "",
		"JSON-RPC endpoint for the selected chain (overrides config and environment)")

	return cmd
}

// addChainFlag registers --chain.
func addChainFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("chain", "n", string(config.DefaultChain),
		"Chain to use: eth, bsc or polygon")
}

// addNetworkFlags registers the flags shared by commands that reach explorers.
func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each explorer and RPC request")
	cmd.Flags().Duration("cache-ttl", config.DefaultSourceCacheTTL,
		"How long fetched contract sources are reused (0 disables the cache)")
}

// addOutputFlags registers the report format flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateScan(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, scanner.ModeFull, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from the configuration file, the environment
// and cobra command flags. Only flags set on the command line override the
// file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := applyChainFlag(cmd, cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cache-ttl") {
		if cfg.SourceCacheTTL, err = flags.GetDuration("cache-ttl"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("report-dir") {
		if cfg.ReportDir, err = flags.GetString("report-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rpc-url") {
		rpcURL, err := flags.GetString("rpc-url")
		if err != nil {
			return nil, err
		}
		cfg.SetRPCURL(cfg.Chain, rpcURL)
	}
	if flags.Lookup("no-save") != nil {
		noSave, err := flags.GetBool("no-save")
		if err != nil {
			return nil, err
		}
		if noSave {
			cfg.SaveReport = false
			cfg.SaveToDB = false
		}
	}

	if err := applyOutputFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// applyOutputFlags copies the report format flags into cfg.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if cfg.NoColor, err = cmd.Flags().GetBool("no-color"); err != nil {
		return err
	}
	return nil
}

// parseTargets turns command line arguments into scan targets. An argument
// may be prefixed with a chain ("bsc:0x..."); otherwise defaultChain is used.
func parseTargets(args []string, defaultChain model.Chain) ([]pipeline.Target, error) {
	targets := make([]pipeline.Target, 0, len(args))
	for _, arg := range args {
		chain := defaultChain
		raw := arg
		if name, addr, ok := strings.Cut(arg, ":"); ok {
			c, err := model.ParseChain(name)
			if err != nil {
				return nil, fmt.Errorf("invalid target %q: %w", arg, err)
			}
			chain, raw = c, addr
		}
		address, err := model.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", arg, err)
		}
		targets = append(targets, pipeline.Target{Address: address, Chain: chain})
	}
	return targets, nil
}

// openDB opens the scan database when enabled. The returned DB is nil when
// storage is disabled.
func openDB(cfg *config.Config, logger *slog.Logger) (*database.ScanDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "dir", cfg.DBDir)
	return db, nil
}

// runScan scans every target in cfg and prints each report as it finishes.
func runScan(ctx context.Context, cfg *config.Config, mode scanner.Mode, out io.Writer, logger *slog.Logger) error {
	targets, err := parseTargets(cfg.Targets, cfg.Chain)
	if err != nil {
		return err
	}

	logger.Info("starting scan",
		"targets", len(targets),
		"mode", mode,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	opts := []scanner.Option{scanner.WithLogger(logger)}
	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, scanner.WithStore(db))
	}
	if cfg.SaveReport && mode == scanner.ModeFull {
		opts = append(opts, scanner.WithFileSaver(report.NewFileSaver(cfg.ReportDir)))
	}

	svc, err := scanner.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := svc.CheckProxy(ctx); err != nil {
		return err
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	printer := newResultPrinter(cfg, mode, output, out, len(targets))
	startTime := time.Now()

	err = svc.ScanBatch(ctx, targets, mode, printer.print)
	if err != nil {
		return err
	}

	if len(targets) > 1 {
		fmt.Fprintf(out, "\nScanned %d contracts in %s\n", len(targets), time.Since(startTime).Round(time.Millisecond))
	}
	if printer.failed > 0 {
		return fmt.Errorf("%d of %d scans failed", printer.failed, len(targets))
	}
	return nil
}

// resultPrinter serializes output of concurrent scans.
type resultPrinter struct {
	mu     sync.Mutex
	cfg    *config.Config
	mode   scanner.Mode
	report report.Writer
	status io.Writer
	total  int
	failed int
}

func newResultPrinter(cfg *config.Config, mode scanner.Mode, output, status io.Writer, total int) *resultPrinter {
	return &resultPrinter{
		cfg:    cfg,
		mode:   mode,
		report: newReportWriter(cfg, output),
		status: status,
		total:  total,
	}
}

func (p *resultPrinter) print(res *scanner.Result, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rep := res.Report
	if rep.Error != nil && !rep.Analyzed {
		p.failed++
		fmt.Fprintf(p.status, "❌ %s (%s): %v\n", rep.Address, rep.Chain.Title(), rep.Error)
		return
	}

	if p.mode == scanner.ModeScore && !p.cfg.JSONReport && !p.cfg.MarkdownReport {
		fmt.Fprintln(p.status, scoreLine(rep))
		return
	}

	if p.total > 1 && !p.cfg.JSONReport {
		fmt.Fprintf(p.status, "[%d/%d] %s (%s)\n", index+1, p.total, rep.Address, rep.Chain.Title())
	}
	if _, err := p.report.Write(rep); err != nil {
		slog.Error("report failed", "address", rep.Address.String(), "error", err)
	}
	if res.SavedPath != "" && !p.cfg.JSONReport {
		fmt.Fprintf(p.status, "📁 Report saved to %s\n", res.SavedPath)
	}
}

// scoreLine is the one-line verdict printed by the score command.
func scoreLine(rep *model.ContractReport) string {
	level := rep.RiskLevel
	if !rep.Verified {
		level = model.RiskLevelCritical
	}
	return fmt.Sprintf("%s %s (%s): %s", level.Emoji(), rep.Address, rep.Chain.Title(), rep.Summary())
}

// newReportWriter returns the writer selected by the report format flags.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, currentBuild().Version, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		opts := []report.SimpleWriterOption{report.WithVerbose(cfg.Verbose)}
		if cfg.NoColor || cfg.ReportFile != "" {
			opts = append(opts, report.WithColor(false))
		}
		return report.NewSimpleWriter(output, opts...)
	}
}

// openOutput returns the report destination. An empty path selects
// fallback. Report files are created with owner-only permissions.
func openOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
