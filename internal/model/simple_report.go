package model

import (
	"sort"
	"time"
)

// SimpleReport is a summarized, human-readable report.
// It is the view every report writer renders.
type SimpleReport struct {
	// Address is the checksummed contract address.
	Address string `json:"address"`

	// Chain is the canonical chain name.
	Chain Chain `json:"chain"`

	// DateScanned is when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// ContractName is the explorer-reported name, if verified.
	ContractName string `json:"contract_name,omitempty"`

	// Verified indicates whether the source was available.
	Verified bool `json:"verified"`

	// === Score ===

	// RiskScore is the 0..100 score.
	RiskScore int `json:"risk_score"`

	// RiskLevel is the label derived from RiskScore.
	RiskLevel RiskLevel `json:"risk_level"`

	// Summary is the one-line verdict.
	Summary string `json:"summary"`

	// === Severity Summary ===

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

	// === Findings ===

	// Findings contains all findings, most severe first.
	Findings []Finding `json:"findings,omitempty"`

	// OnChain holds the ordered on-chain lines, if checks ran.
	OnChain []KeyValue `json:"onchain,omitempty"`

	// TimedOut indicates if the scan was cancelled.
	TimedOut bool `json:"timed_out"`

	// Error contains any error message if the scan failed.
	Error string `json:"error,omitempty"`
}

// NewSimpleReport creates a new SimpleReport from a ContractReport.
func NewSimpleReport(report *ContractReport) *SimpleReport {
	simple := &SimpleReport{
		Address:      report.Address.String(),
		Chain:        report.Chain,
		DateScanned:  report.DateScanned,
		ContractName: report.ContractName,
		Verified:     report.Verified,
		RiskScore:    report.RiskScore,
		RiskLevel:    report.RiskLevel,
		Summary:      report.Summary(),
		TimedOut:     report.TimedOut,
		Error:        report.ErrorMessage,
	}

	simple.Findings = make([]Finding, len(report.Findings))
	copy(simple.Findings, report.Findings)
	sort.SliceStable(simple.Findings, func(i, j int) bool {
		return simple.Findings[i].Severity > simple.Findings[j].Severity
	})

	if report.OnChain != nil {
		simple.OnChain = report.OnChain.Fields()
	}

	simple.countBySeverity()

	return simple
}

// countBySeverity counts findings by severity level.
func (s *SimpleReport) countBySeverity() {
	for _, f := range s.Findings {
		switch f.Severity {
		case SeverityCritical:
			s.CriticalCount++
		case SeverityHigh:
			s.HighCount++
		case SeverityMedium:
			s.MediumCount++
		case SeverityLow:
			s.LowCount++
		case SeverityInfo:
			s.InfoCount++
		}
	}
}

// TotalFindings returns the total number of findings.
func (s *SimpleReport) TotalFindings() int {
	return len(s.Findings)
}

// HasFindings returns true if there are any findings.
func (s *SimpleReport) HasFindings() bool {
	return len(s.Findings) > 0
}

// GetFindingsBySeverity returns findings filtered by severity.
func (s *SimpleReport) GetFindingsBySeverity(severity Severity) []Finding {
	var result []Finding
	for _, f := range s.Findings {
		if f.Severity == severity {
			result = append(result, f)
		}
	}
	return result
}

// SeverityCounts returns the per-severity counts keyed by lowercase name.
func (s *SimpleReport) SeverityCounts() map[string]int {
	return map[string]int{
		"critical": s.CriticalCount,
		"high":     s.HighCount,
		"medium":   s.MediumCount,
		"low":      s.LowCount,
		"info":     s.InfoCount,
	}
}
