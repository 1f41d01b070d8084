package report

import (
	"io"

	"github.com/nao1215/sentinel/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ContractReport) (int, error)

	// WriteSimple outputs only the summarized report.
	WriteSimple(report *model.SimpleReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// severityOrder lists severities most severe first.
var severityOrder = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}

// severityIcon returns the status marker shown next to a finding.
func severityIcon(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "❌"
	case model.SeverityHigh:
		return "🚨"
	case model.SeverityMedium:
		return "⚠️"
	case model.SeverityLow:
		return "✅"
	default:
		return "ℹ️"
	}
}
