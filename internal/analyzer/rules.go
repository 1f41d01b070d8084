package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/sentinel/internal/model"
)

// ErrEmptyPattern is returned when a rule has no pattern to match.
var ErrEmptyPattern = errors.New("rule pattern must not be empty")

// Rule is a single source pattern check.
type Rule struct {
	// Type is the finding type recorded when the rule fires.
	Type string

	// Pattern is matched case-insensitively against the source.
	Pattern string

	// Title is the message shown to users.
	Title string

	// Impact is added to the risk score when the rule fires.
	// Negative impacts count as issues.
	Impact int

	// Severity is the severity of the resulting finding.
	Severity model.Severity
}

// IsIssue reports whether a match lowers the score.
func (r Rule) IsIssue() bool {
	return r.Impact < 0
}

// Validate checks that the rule can be evaluated.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w (title %q)", ErrEmptyPattern, r.Title)
	}
	return nil
}

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:     model.FindingOnlyOwner,
			Pattern:  "onlyOwner",
			Title:    "Contains access control using onlyOwner.",
			Impact:   0,
			Severity: model.SeverityLow,
		},
		{
			Type:     model.FindingMintFunction,
			Pattern:  "mint",
			Title:    "Mint function found (check if restricted).",
			Impact:   -20,
			Severity: model.SeverityMedium,
		},
		{
			Type:     model.FindingBlacklistLogic,
			Pattern:  "blacklist",
			Title:    "Blacklist logic detected (potential sell restriction).",
			Impact:   -15,
			Severity: model.SeverityMedium,
		},
		{
			Type:     model.FindingTxOrigin,
			Pattern:  "tx.origin",
			Title:    "Uses tx.origin — potential phishing risk.",
			Impact:   -40,
			Severity: model.SeverityHigh,
		},
		{
			Type:     model.FindingRenounceOwnership,
			Pattern:  "renounceOwnership",
			Title:    "Ownership can be renounced.",
			Impact:   20,
			Severity: model.SeverityLow,
		},
	}
}

// CustomRule builds a rule declared in configuration.
// An empty severity name defaults to Medium for issues and Low otherwise.
func CustomRule(pattern, title string, impact int, severity string) (Rule, error) {
	rule := Rule{
		Type:    model.FindingCustomRule,
		Pattern: pattern,
		Title:   title,
		Impact:  impact,
	}
	if rule.Title == "" {
		rule.Title = fmt.Sprintf("Pattern %q found.", pattern)
	}

	switch {
	case severity != "":
		s, ok := model.ParseSeverity(severity)
		if !ok {
			return Rule{}, fmt.Errorf("unknown severity %q for rule %q", severity, pattern)
		}
		rule.Severity = s
	case rule.IsIssue():
		rule.Severity = model.SeverityMedium
	default:
		rule.Severity = model.SeverityLow
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}
