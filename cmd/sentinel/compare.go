package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/database"
	"github.com/nao1215/sentinel/internal/model"
)

// Constants for risk direction and summary messages.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
	noFindingsMessage      = "No findings"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [address]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the current and previous scan results.

This command retrieves historical scan data from the database and shows:
- New findings that appeared since the last scan
- Resolved findings that are no longer present
- The change of the risk score

The comparison requires at least two scans in the database for the specified
contract. Use 'sentinel scan' to perform scans and save results.

Examples:
  # Compare latest two scans of a contract
  sentinel compare 0xdAC17F958D2ee523a2206206994597C13D831ec7

  # List all scan history for a contract on BNB Chain
  sentinel compare --chain bsc --list 0x55d398326f99059fF775485246999027B3197955

  # Compare with a specific historical scan by ID
  sentinel compare --with-scan-id 5 0xdAC17F958D2ee523a2206206994597C13D831ec7

  # Compare scans since a specific date
  sentinel compare --since "2025-01-01" 0xdAC17F958D2ee523a2206206994597C13D831ec7

  # List all scanned contracts in the database
  sentinel compare --list-contracts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	addChainFlag(cmd)

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified contract")
	cmd.Flags().BoolP("list-contracts", "L", false,
		"List all scanned contracts in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// compareOptions selects what runComparison compares against.
type compareOptions struct {
	withScanID int64
	sinceDate  string
	json       bool
	markdown   bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-contracts flag first (requires database but no address)
	listContracts, err := cmd.Flags().GetBool("list-contracts")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyChainFlag(cmd, cfg); err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-contracts)
	// This prevents database lock issues when validation fails
	var address model.Address
	if !listContracts {
		if len(args) == 0 {
			return errors.New("contract address is required (use --list-contracts to see scanned contracts)")
		}
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
	out := cmd.OutOrStdout()

	if listContracts {
		return listScannedContracts(ctx, out, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, out, db, address, cfg.Chain)
	}

	var opts compareOptions
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}
	if opts.withScanID, err = cmd.Flags().GetInt64("with-scan-id"); err != nil {
		return err
	}
	if opts.sinceDate, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}

	return runComparison(ctx, out, db, address, cfg.Chain, opts)
}

// openHistoryDB opens the scan database for reading history.
func openHistoryDB(cfg *config.Config) (*database.ScanDB, error) {
	slog.Debug("opening database", "dir", cfg.DBDir)
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// listScannedContracts lists all contracts that have scan records in the database.
func listScannedContracts(ctx context.Context, out io.Writer, db *database.ScanDB) error {
	contracts, err := db.ListScannedContracts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list contracts: %w", err)
	}

	if len(contracts) == 0 {
		fmt.Fprintln(out, "No scanned contracts found in the database.")
		fmt.Fprintln(out, "\nUse 'sentinel scan <address>' to scan a contract.")
		return nil
	}

	fmt.Fprintf(out, "Scanned contracts (%d):\n\n", len(contracts))
	for _, c := range contracts {
		fmt.Fprintf(out, "  • %s  %-8s  %d scans, last %s\n",
			c.Address, c.Chain, c.Scans, c.LastScanned.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out, "\nUse 'sentinel compare --list <address>' to see scan history for a contract.")

	return nil
}

// listScanHistory lists all scan records for a contract.
func listScanHistory(ctx context.Context, out io.Writer, db *database.ScanDB, address model.Address, chain model.Chain) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, address, chain)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintf(out, "No scan history found for %s on %s\n", address, chain.Title())
		fmt.Fprintln(out, "\nUse 'sentinel scan' to scan this contract.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s on %s (%d scans):\n\n", address, chain.Title(), len(reports))
	fmt.Fprintf(out, "  %-6s  %-20s  %-22s  %s\n", "ID", "Date", "Risk", "Findings")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, meta := range reports {
		fmt.Fprintf(out, "  %-6d  %-20s  %-22s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d/100 %s", meta.RiskScore, meta.RiskLevel),
			formatRiskSummary(meta.RiskSummary),
		)
	}

	fmt.Fprintln(out, "\nUse 'sentinel compare <address>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'sentinel compare --with-scan-id <id> <address>' to compare with a specific scan.")

	return nil
}

// formatRiskSummary formats the risk summary map into a human-readable string.
func formatRiskSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	if v := summary["critical"]; v > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", v))
	}
	if v := summary["high"]; v > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", v))
	}
	if v := summary["medium"]; v > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", v))
	}
	if v := summary["low"]; v > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", v))
	}
	if v := summary["info"]; v > 0 {
		parts = append(parts, fmt.Sprintf("I:%d", v))
	}

	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison performs the actual comparison between scan reports.
func runComparison(ctx context.Context, out io.Writer, db *database.ScanDB, address model.Address, chain model.Chain, opts compareOptions) error {
	reports, err := db.GetScanHistory(ctx, address, chain)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s on %s", address, chain.Title())
	}

	if len(reports) < 2 && opts.withScanID == 0 && opts.sinceDate == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Latest report is always the current one
	currentReport := reports[0]
	var previousReport *model.ContractReport

	switch {
	case opts.withScanID > 0:
		previousReport, err = db.GetScanReportByID(ctx, opts.withScanID)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("scan with ID %d not found", opts.withScanID)
		}
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", opts.withScanID, err)
		}
		if previousReport.Address != address || previousReport.Chain != chain {
			return fmt.Errorf("scan ID %d belongs to %s on %s, not %s on %s",
				opts.withScanID, previousReport.Address, previousReport.Chain.Title(), address, chain.Title())
		}
	case opts.sinceDate != "":
		parsedDate, err := time.ParseInLocation("2006-01-02", opts.sinceDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are sorted newest first, so iterate in reverse to find the
		// oldest report at or after the date.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateScanned.Before(parsedDate) {
				previousReport = reports[i]
				break
			}
		}
		if previousReport == nil {
			return fmt.Errorf("no scans found since %s", opts.sinceDate)
		}
		if previousReport == currentReport {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", opts.sinceDate)
		}
	default:
		previousReport = reports[1]
	}

	comparison := compareReports(previousReport, currentReport)

	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Address is the scanned contract address.
	Address string `json:"address"`

	// Chain is the contract's chain.
	Chain model.Chain `json:"chain"`

	// PreviousScan contains metadata about the previous scan.
	PreviousScan ScanMetadata `json:"previous_scan"`

	// CurrentScan contains metadata about the current scan.
	CurrentScan ScanMetadata `json:"current_scan"`

	// NewFindings contains findings that are new in the current scan.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings contains findings that were in the previous scan but not in current.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings that remain unchanged.
	UnchangedCount int `json:"unchanged_count"`

	// RiskChange describes the overall change in risk.
	RiskChange RiskChange `json:"risk_change"`
}

// ScanMetadata contains metadata about a scan for comparison display.
type ScanMetadata struct {
	// DateScanned is when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// RiskScore is the 0..100 score of the scan.
	RiskScore int `json:"risk_score"`

	// RiskLevel is the label of RiskScore.
	RiskLevel model.RiskLevel `json:"risk_level"`

	// TotalFindings is the total number of findings in this scan.
	TotalFindings int `json:"total_findings"`

	// CriticalCount is the number of critical findings.
	CriticalCount int `json:"critical_count"`

	// HighCount is the number of high severity findings.
	HighCount int `json:"high_count"`

	// MediumCount is the number of medium severity findings.
	MediumCount int `json:"medium_count"`

	// LowCount is the number of low severity findings.
	LowCount int `json:"low_count"`

	// InfoCount is the number of informational findings.
	InfoCount int `json:"info_count"`
}

// RiskChange describes the change in risk between scans.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	// ScoreDelta is the change of the risk score. Positive is safer.
	ScoreDelta int `json:"score_delta"`

	// CriticalDelta is the change in critical findings count.
	CriticalDelta int `json:"critical_delta"`

	// HighDelta is the change in high severity findings count.
	HighDelta int `json:"high_delta"`

	// MediumDelta is the change in medium severity findings count.
	MediumDelta int `json:"medium_delta"`

	// LowDelta is the change in low severity findings count.
	LowDelta int `json:"low_delta"`

	// InfoDelta is the change in informational findings count.
	InfoDelta int `json:"info_delta"`
}

func newScanMetadata(r *model.ContractReport) ScanMetadata {
	simple := model.NewSimpleReport(r)
	return ScanMetadata{
		DateScanned:   r.DateScanned,
		RiskScore:     r.RiskScore,
		RiskLevel:     r.RiskLevel,
		TotalFindings: simple.TotalFindings(),
		CriticalCount: simple.CriticalCount,
		HighCount:     simple.HighCount,
		MediumCount:   simple.MediumCount,
		LowCount:      simple.LowCount,
		InfoCount:     simple.InfoCount,
	}
}

// compareReports compares two scan reports and generates a comparison result.
func compareReports(previous, current *model.ContractReport) *ComparisonResult {
	result := &ComparisonResult{
		Address:      current.Address.String(),
		Chain:        current.Chain,
		PreviousScan: newScanMetadata(previous),
		CurrentScan:  newScanMetadata(current),
	}

	previousFindings := make(map[string]model.Finding, len(previous.Findings))
	for _, f := range previous.Findings {
		previousFindings[findingKey(f)] = f
	}
	currentFindings := make(map[string]model.Finding, len(current.Findings))
	for _, f := range current.Findings {
		currentFindings[findingKey(f)] = f
	}

	// Find new findings (in current but not in previous)
	for key, finding := range currentFindings {
		if _, exists := previousFindings[key]; !exists {
			result.NewFindings = append(result.NewFindings, finding)
		}
	}

	// Find resolved findings (in previous but not in current)
	for key, finding := range previousFindings {
		if _, exists := currentFindings[key]; !exists {
			result.ResolvedFindings = append(result.ResolvedFindings, finding)
		} else {
			result.UnchangedCount++
		}
	}

	sortFindings(result.NewFindings)
	sortFindings(result.ResolvedFindings)

	result.RiskChange = calculateRiskChange(result.PreviousScan, result.CurrentScan)

	return result
}

// sortFindings orders findings most severe first, then by key, so output is stable.
func sortFindings(findings []model.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findingKey(findings[i]) < findingKey(findings[j])
	})
}

// findingKey generates a unique key for a finding for comparison purposes.
func findingKey(f model.Finding) string {
	return f.Type + "|" + f.Value + "|" + f.Location
}

// calculateRiskChange calculates the change in risk between two scans.
// The direction follows the risk score, where higher is safer.
func calculateRiskChange(previous, current ScanMetadata) RiskChange {
	change := RiskChange{
		ScoreDelta:    current.RiskScore - previous.RiskScore,
		CriticalDelta: current.CriticalCount - previous.CriticalCount,
		HighDelta:     current.HighCount - previous.HighCount,
		MediumDelta:   current.MediumCount - previous.MediumCount,
		LowDelta:      current.LowCount - previous.LowCount,
		InfoDelta:     current.InfoCount - previous.InfoCount,
	}

	switch {
	case change.ScoreDelta > 0:
		change.Direction = riskDirectionImproved
	case change.ScoreDelta < 0:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Scan Comparison: " + result.Address)
	md.PlainText("")
	md.PlainText(markdown.Bold("Chain:") + " " + result.Chain.Title())
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.PlainText(markdown.Bold("Risk Status:") + " " + formatRiskDirection(result.RiskChange.Direction))
	md.PlainText("")

	prev, cur, change := result.PreviousScan, result.CurrentScan, result.RiskChange
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", prev.DateScanned.Local().Format("2006-01-02 15:04"), cur.DateScanned.Local().Format("2006-01-02 15:04"), "-"},
			{"Risk Score", strconv.Itoa(prev.RiskScore), strconv.Itoa(cur.RiskScore), formatDelta(change.ScoreDelta)},
			{"Critical", strconv.Itoa(prev.CriticalCount), strconv.Itoa(cur.CriticalCount), formatDelta(change.CriticalDelta)},
			{"High", strconv.Itoa(prev.HighCount), strconv.Itoa(cur.HighCount), formatDelta(change.HighDelta)},
			{"Medium", strconv.Itoa(prev.MediumCount), strconv.Itoa(cur.MediumCount), formatDelta(change.MediumDelta)},
			{"Low", strconv.Itoa(prev.LowCount), strconv.Itoa(cur.LowCount), formatDelta(change.LowDelta)},
			{"Info", strconv.Itoa(prev.InfoCount), strconv.Itoa(cur.InfoCount), formatDelta(change.InfoDelta)},
			{
				markdown.Bold("Total"),
				markdown.Bold(strconv.Itoa(prev.TotalFindings)),
				markdown.Bold(strconv.Itoa(cur.TotalFindings)),
				markdown.Bold(formatDelta(cur.TotalFindings - prev.TotalFindings)),
			},
		},
	})
	md.PlainText("")

	if len(result.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(result.NewFindings)))
		md.PlainText("")
		items := make([]string, len(result.NewFindings))
		for i, f := range result.NewFindings {
			items[i] = markdown.Bold("["+f.SeverityText+"]") + " " + f.Title + findingValue(f)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(result.ResolvedFindings)))
		md.PlainText("")
		items := make([]string, len(result.ResolvedFindings))
		for i, f := range result.ResolvedFindings {
			items[i] = markdown.Strikethrough("[" + f.SeverityText + "] " + f.Title + findingValue(f))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainText(markdown.Italic(fmt.Sprintf("%d findings unchanged", result.UnchangedCount)))
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Scan Comparison: %s (%s)\n", result.Address, result.Chain.Title())
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))

	prev, cur, change := result.PreviousScan, result.CurrentScan, result.RiskChange
	fmt.Fprintf(out, "\nPrevious scan: %s  %d/100 (%s)\n",
		prev.DateScanned.Local().Format("2006-01-02 15:04:05"), prev.RiskScore, prev.RiskLevel)
	fmt.Fprintf(out, "Current scan:  %s  %d/100 (%s)\n",
		cur.DateScanned.Local().Format("2006-01-02 15:04:05"), cur.RiskScore, cur.RiskLevel)

	rows := []struct {
		name      string
		prev, cur int
		delta     int
	}{
		{"Critical", prev.CriticalCount, cur.CriticalCount, change.CriticalDelta},
		{"High", prev.HighCount, cur.HighCount, change.HighDelta},
		{"Medium", prev.MediumCount, cur.MediumCount, change.MediumDelta},
		{"Low", prev.LowCount, cur.LowCount, change.LowDelta},
		{"Info", prev.InfoCount, cur.InfoCount, change.InfoDelta},
	}

	fmt.Fprintln(out, "\nFindings Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	for _, r := range rows {
		fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", r.name, r.prev, r.cur, formatDelta(r.delta))
	}
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		prev.TotalFindings, cur.TotalFindings, formatDelta(cur.TotalFindings-prev.TotalFindings))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "  [+] [%s] %s%s\n", f.SeverityText, f.Title, findingValue(f))
			if f.Location != "" {
				fmt.Fprintf(out, "      Location: %s\n", f.Location)
			}
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "  [-] [%s] %s%s\n", f.SeverityText, f.Title, findingValue(f))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	return nil
}

func findingValue(f model.Finding) string {
	if f.Value == "" {
		return ""
	}
	return ": " + f.Value
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
