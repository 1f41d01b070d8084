package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/sentinel/internal/model"
)

// Scoring constants.
const (
	// unverifiedPenalty is deducted when no source is available.
	unverifiedPenalty = 80

	// noIssueBonus is added when no issue rule fired.
	noIssueBonus = 10
)

// Result is the outcome of a static scan.
type Result struct {
	// Verified is false when there was no source to scan.
	Verified bool

	// Findings are produced in rule order.
	Findings []model.Finding

	// Score is the clamped risk score.
	Score int

	// Level is the label derived from Score.
	Level model.RiskLevel

	// Issues counts findings with a negative impact.
	Issues int
}

// Analyzer runs pattern rules over contract source.
type Analyzer struct {
	rules []Rule
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRules appends extra rules after the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) {
		a.rules = append(a.rules, rules...)
	}
}

// New creates an Analyzer with the built-in rules registered.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules: DefaultRules(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scans source and computes the risk score.
// A blank source is treated as an unverified contract, the same rule the
// explorer client applies when it sets SourceInfo.Verified.
func (a *Analyzer) Analyze(ctx context.Context, source string) (*Result, error) {
	if strings.TrimSpace(source) == "" {
		return unverifiedResult(), nil
	}

	result := &Result{
		Verified: true,
		Findings: make([]model.Finding, 0, len(a.rules)+1),
	}
	score := model.MaxRiskScore

	lowerSource := strings.ToLower(source)
	lines := strings.Split(lowerSource, "\n")

	for _, rule := range a.rules {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pattern := strings.ToLower(rule.Pattern)
		if !strings.Contains(lowerSource, pattern) {
			continue
		}

		finding := newRuleFinding(rule)
		finding.Location, finding.Occurrences = locate(lines, pattern)
		result.Findings = append(result.Findings, finding)

		score += rule.Impact
		if rule.IsIssue() {
			result.Issues++
		}
	}

	if result.Issues == 0 {
		finding := model.NewFinding(model.FindingNoKnownRisks, "No known risk patterns detected.", "", "")
		finding.ScoreImpact = noIssueBonus
		result.Findings = append(result.Findings, finding)
		score += noIssueBonus
	}

	result.Score = clamp(score)
	result.Level = model.RiskLevelForScore(result.Score)
	return result, nil
}

// Apply copies the result onto a report and marks it as analyzed.
func (r *Result) Apply(report *model.ContractReport) {
	for _, f := range r.Findings {
		report.AddFinding(f)
	}
	report.Verified = r.Verified
	report.RiskScore = r.Score
	report.RiskLevel = r.Level
	report.IssuesFound = r.Issues
	report.Analyzed = true
}

func unverifiedResult() *Result {
	finding := model.NewFinding(model.FindingUnverifiedSource,
		"Contract not verified — cannot review source.", "", "")
	finding.ScoreImpact = -unverifiedPenalty

	return &Result{
		Verified: false,
		Findings: []model.Finding{finding},
		Score:    clamp(model.MaxRiskScore - unverifiedPenalty),
		Level:    model.RiskLevelCritical,
	}
}

func newRuleFinding(rule Rule) model.Finding {
	finding := model.NewFinding(rule.Type, rule.Title, rule.Pattern, "")
	finding.Severity = rule.Severity
	finding.SeverityText = rule.Severity.String()
	finding.ScoreImpact = rule.Impact
	return finding
}

// locate returns the first matching line as "L<n>" and the number of
// lines containing pattern. Patterns spanning lines report no location.
func locate(lines []string, pattern string) (string, int) {
	first := 0
	count := 0
	for i, line := range lines {
		if strings.Contains(line, pattern) {
			if first == 0 {
				first = i + 1
			}
			count++
		}
	}
	if first == 0 {
		return "", 0
	}
	return fmt.Sprintf("L%d", first), count
}

func clamp(score int) int {
	return max(model.MinRiskScore, min(model.MaxRiskScore, score))
}
