package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nao1215/sentinel/internal/model"
)

// SimpleWriter outputs human-readable terminal reports: a header with the
// contract and scan status, the "Static Scan Results" findings list, then the
// "On-Chain Analysis" section. Severity markers are coloured unless
// disabled.
type SimpleWriter struct {
	baseWriter

	// verbose adds locations, impact and recommendations.
	verbose bool

	high    *color.Color
	medium  *color.Color
	low     *color.Color
	info    *color.Color
	section *color.Color
	onchain *color.Color
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor forces colour on or off. Without this option colour follows
// terminal detection (and the NO_COLOR environment variable).
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		for _, c := range w.colors() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		high:       color.New(color.FgRed),
		medium:     color.New(color.FgYellow),
		low:        color.New(color.FgGreen),
		info:       color.New(color.FgCyan),
		section:    color.New(color.FgWhite, color.Bold),
		onchain:    color.New(color.FgMagenta),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *SimpleWriter) colors() []*color.Color {
	return []*color.Color{w.high, w.medium, w.low, w.info, w.section, w.onchain}
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.ContractReport) (int, error) {
	return w.WriteSimple(model.NewSimpleReport(report))
}

// WriteSimple outputs the simple report in human-readable format.
func (w *SimpleWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStatic(&sb, report)
	w.writeOnChain(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SimpleReport) {
	fmt.Fprintf(sb, "Contract: %s\n", report.Address)
	fmt.Fprintf(sb, "Chain:    %s\n", report.Chain.Title())
	if report.ContractName != "" {
		fmt.Fprintf(sb, "Name:     %s\n", report.ContractName)
	}
	fmt.Fprintf(sb, "Scanned:  %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST"))

	switch {
	case report.TimedOut:
		sb.WriteString("Status:   TIMED OUT (partial results)\n")
	case report.Error != "":
		fmt.Fprintf(sb, "Status:   ERROR - %s\n", report.Error)
	}
}

func (w *SimpleWriter) writeStatic(sb *strings.Builder, report *model.SimpleReport) {
	sb.WriteString("\n")
	sb.WriteString(w.section.Sprint("=== Static Scan Results ==="))
	sb.WriteString("\n")

	for _, f := range report.Findings {
		status := w.severityColor(f.Severity).Sprintf("%s %s", severityIcon(f.Severity), f.Severity)
		fmt.Fprintf(sb, "%s - %s\n", status, f.Title)

		if !w.verbose {
			continue
		}
		if f.Location != "" {
			if f.Occurrences > 1 {
				fmt.Fprintf(sb, "    Location: %s (%d lines)\n", f.Location, f.Occurrences)
			} else {
				fmt.Fprintf(sb, "    Location: %s\n", f.Location)
			}
		}
		if f.Impact != "" {
			fmt.Fprintf(sb, "    Impact: %s\n", f.Impact)
		}
		if f.Recommendation != "" {
			fmt.Fprintf(sb, "    Recommendation: %s\n", f.Recommendation)
		}
	}

	fmt.Fprintf(sb, "%s - %s\n", w.info.Sprint("📊 Summary"), report.Summary)
}

func (w *SimpleWriter) writeOnChain(sb *strings.Builder, report *model.SimpleReport) {
	if len(report.OnChain) == 0 {
		return
	}

	sb.WriteString("\n")
	sb.WriteString(w.onchain.Sprint("=== On-Chain Analysis ==="))
	sb.WriteString("\n")
	for _, kv := range report.OnChain {
		fmt.Fprintf(sb, "%s %s\n", w.onchain.Sprint(kv.Key+":"), kv.Value)
	}
}

// severityColor mirrors the terminal palette: High red, Medium yellow,
// Low green and cyan for everything else.
func (w *SimpleWriter) severityColor(severity model.Severity) *color.Color {
	switch severity {
	case model.SeverityCritical, model.SeverityHigh:
		return w.high
	case model.SeverityMedium:
		return w.medium
	case model.SeverityLow:
		return w.low
	default:
		return w.info
	}
}
