package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sentinel/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, for pasting
// into issues or sharing with a community.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ContractReport) (int, error) {
	return w.WriteSimple(model.NewSimpleReport(report))
}

// WriteSimple outputs the simple report in Markdown format.
func (w *MarkdownWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeOnChain(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SimpleReport) {
	md.H1("Smart Contract Sentinel Report")
	md.PlainText("")

	name := report.ContractName
	if name == "" {
		name = "-"
	}
	verified := "❌ No"
	if report.Verified {
		verified = "✅ Yes"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Contract", "`" + report.Address + "`"},
			{"Chain", report.Chain.Title()},
			{"Name", name},
			{"Verified", verified},
			{"Risk Score", strconv.Itoa(report.RiskScore) + "/100 (" + report.RiskLevel.Label() + ")"},
			{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func statusText(report *model.SimpleReport) string {
	if report.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if report.Error != "" {
		return "❌ Error - " + report.Error
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SimpleReport) {
	md.H2("Summary")
	md.PlainText("")
	md.PlainText(report.Summary)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"❌ Critical", strconv.Itoa(report.CriticalCount)},
			{"🚨 High", strconv.Itoa(report.HighCount)},
			{"⚠️ Medium", strconv.Itoa(report.MediumCount)},
			{"✅ Low", strconv.Itoa(report.LowCount)},
			{"ℹ️ Info", strconv.Itoa(report.InfoCount)},
			{"**Total**", "**" + strconv.Itoa(report.TotalFindings()) + "**"},
		},
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SimpleReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	counts := []struct {
		label string
		count int
	}{
		{"Critical", report.CriticalCount},
		{"High", report.HighCount},
		{"Medium", report.MediumCount},
		{"Low", report.LowCount},
		{"Info", report.InfoCount},
	}
	for _, c := range counts {
		if c.count > 0 {
			chart.LabelAndIntValue(c.label, uint64(c.count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert picks the alert from the risk level rather than the finding
// counts, since positive findings are reported with low severity.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SimpleReport) {
	switch report.RiskLevel {
	case model.RiskLevelCritical:
		md.Caution("The contract source is not verified. Its logic cannot be reviewed.")
	case model.RiskLevelHigh:
		md.Warningf("High risk: overall score %d/100. Review the findings before interacting.", report.RiskScore)
	case model.RiskLevelModerate:
		md.Importantf("Moderate risk: overall score %d/100.", report.RiskScore)
	case model.RiskLevelLow:
		md.Tip("No significant risk patterns detected.")
	default:
		md.Note("The contract could not be scored.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.SimpleReport) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	for _, severity := range severityOrder {
		findings := report.GetFindingsBySeverity(severity)
		if len(findings) == 0 {
			continue
		}
		md.H3(severityIcon(severity) + " " + severity.String())
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.Title,
			dash(truncateString(f.Value, 50)),
			dash(f.Location),
			strconv.Itoa(f.ScoreImpact),
			dash(truncateString(f.Recommendation, 80)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Value", "Location", "Score Impact", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Impact != "" {
			md.Details(f.Title, f.Impact)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeOnChain(md *markdown.Markdown, report *model.SimpleReport) {
	if len(report.OnChain) == 0 {
		return
	}

	md.H2("On-Chain Analysis")
	md.PlainText("")

	rows := make([][]string, len(report.OnChain))
	for i, kv := range report.OnChain {
		rows[i] = []string{kv.Key, kv.Value}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Check", "Result"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Pattern matching is not an audit. Report generated by [Smart Contract Sentinel](https://github.com/nao1215/sentinel)*")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
