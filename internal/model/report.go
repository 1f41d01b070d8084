package model

import (
	"fmt"
	"time"
)

// RiskLevel is the label derived from a risk score.
type RiskLevel string

// Risk levels. Scores are out of 100 and higher is safer.
const (
	// RiskLevelLow is assigned to scores of 80 and above.
	RiskLevelLow RiskLevel = "Low Risk"

	// RiskLevelModerate is assigned to scores from 50 to 79.
	RiskLevelModerate RiskLevel = "Moderate Risk"

	// RiskLevelHigh is assigned to scores below 50.
	RiskLevelHigh RiskLevel = "High Risk"

	// RiskLevelCritical is assigned when the source could not be reviewed.
	RiskLevelCritical RiskLevel = "Critical"
)

// Score thresholds and bounds.
const (
	// MaxRiskScore is the starting score before any deduction.
	MaxRiskScore = 100

	// MinRiskScore is the lower clamp.
	MinRiskScore = 0

	// LowRiskThreshold is the minimum score labelled RiskLevelLow.
	LowRiskThreshold = 80

	// ModerateRiskThreshold is the minimum score labelled RiskLevelModerate.
	ModerateRiskThreshold = 50
)

// RiskLevelForScore maps a clamped score to its label.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= LowRiskThreshold:
		return RiskLevelLow
	case score >= ModerateRiskThreshold:
		return RiskLevelModerate
	default:
		return RiskLevelHigh
	}
}

// Emoji returns the traffic-light marker for the level.
func (l RiskLevel) Emoji() string {
	switch l {
	case RiskLevelLow:
		return "🟢"
	case RiskLevelModerate:
		return "🟡"
	case RiskLevelHigh:
		return "🔴"
	case RiskLevelCritical:
		return "❌"
	default:
		return "⚪"
	}
}

// Label returns the level prefixed with its emoji, e.g. "🟢 Low Risk".
func (l RiskLevel) Label() string {
	return l.Emoji() + " " + string(l)
}

// Finding represents a single observation about a contract.
type Finding struct {
	// Type is the finding type identifier.
	// This maps to findingInfoMapping in severity.go.
	Type string `json:"type"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity.
	SeverityText string `json:"severity_text"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	// Description provides more detail about the finding.
	Description string `json:"description,omitempty"`

	// Impact explains the security implications of this finding.
	Impact string `json:"impact,omitempty"`

	// Recommendation provides guidance on how to address this finding.
	Recommendation string `json:"recommendation,omitempty"`

	// Value is the matched pattern or on-chain value.
	Value string `json:"value,omitempty"`

	// Location is where the finding was discovered (e.g. "L42" or "bytecode").
	Location string `json:"location,omitempty"`

	// Occurrences is the number of matching source lines, when applicable.
	Occurrences int `json:"occurrences,omitempty"`

	// ScoreImpact is the signed change this finding applied to the risk score.
	ScoreImpact int `json:"score_impact"`
}

// NewFinding creates a finding whose severity, impact and recommendation
// come from the finding metadata table.
func NewFinding(findingType, title, value, location string) Finding {
	info := GetFindingInfo(findingType)
	return Finding{
		Type:           findingType,
		Severity:       info.Severity,
		SeverityText:   info.Severity.String(),
		Title:          title,
		Impact:         info.Impact,
		Recommendation: info.Recommendation,
		Value:          value,
		Location:       location,
	}
}

// ContractReport is the main scan result structure.
// It contains all information collected while scanning one contract.
type ContractReport struct {
	// Address is the scanned contract address.
	Address Address `json:"address"`

	// Chain is the network the contract lives on.
	Chain Chain `json:"chain"`

	// DateScanned is the timestamp when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// === Source Verification ===

	// Verified is true if the explorer returned source code.
	Verified bool `json:"verified"`

	// ContractName is the name reported by the explorer.
	ContractName string `json:"contract_name,omitempty"`

	// CompilerVersion is the solc version reported by the explorer.
	CompilerVersion string `json:"compiler_version,omitempty"`

	// Implementation is the implementation address when the explorer flags a proxy.
	Implementation string `json:"implementation,omitempty"`

	// SourceCode is the flattened Solidity source.
	SourceCode string `json:"-"` // Excluded from JSON due to size

	// === Static Analysis ===

	// Findings contains every finding in the order it was produced.
	Findings []Finding `json:"findings"`

	// Analyzed is true once the static analysis step has scored the report.
	Analyzed bool `json:"analyzed"`

	// RiskScore is the clamped 0..100 score (higher is safer).
	RiskScore int `json:"risk_score"`

	// RiskLevel is the label derived from RiskScore.
	RiskLevel RiskLevel `json:"risk_level"`

	// IssuesFound counts findings that lowered the score.
	IssuesFound int `json:"issues_found"`

	// === On-chain Data ===

	// OnChain holds the RPC check results, if that step ran.
	OnChain *OnChainResult `json:"onchain,omitempty"`

	// === Scan State ===

	// TimedOut is true if the scan was cancelled before all steps ran.
	TimedOut bool `json:"timed_out"`

	// PerformedScans lists the pipeline steps that were executed.
	PerformedScans []string `json:"performed_scans,omitempty"`

	// Error contains the last step error, if any.
	Error error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewContractReport creates a new report for the given contract.
func NewContractReport(address Address, chain Chain) *ContractReport {
	return &ContractReport{
		Address:     address,
		Chain:       chain,
		DateScanned: time.Now(),
		Findings:    make([]Finding, 0),
	}
}

// AddFinding appends a finding, ignoring exact duplicates of type, value and location.
func (r *ContractReport) AddFinding(finding Finding) {
	for _, f := range r.Findings {
		if f.Type == finding.Type && f.Value == finding.Value && f.Location == finding.Location {
			return
		}
	}
	if finding.SeverityText == "" {
		finding.SeverityText = finding.Severity.String()
	}
	r.Findings = append(r.Findings, finding)
}

// SetError records err as the report's error.
func (r *ContractReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	} else {
		r.ErrorMessage = ""
	}
}

// Summary returns the one-line verdict shown in CLI and bot output.
func (r *ContractReport) Summary() string {
	if !r.Analyzed {
		return "No summary."
	}
	if !r.Verified {
		return fmt.Sprintf("Overall Risk Score: %d/100 (%s)", r.RiskScore, RiskLevelCritical)
	}
	return fmt.Sprintf("Verified: ✅ | Issues Found: %d | Overall Risk: %d/100 (%s)",
		r.IssuesFound, r.RiskScore, r.RiskLevel.Label())
}

// KeyValue is an ordered label/value pair for display.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OnChainResult contains what the JSON-RPC checks learned about a contract.
type OnChainResult struct {
	// ChainID is the id reported by the RPC endpoint.
	ChainID uint64 `json:"chain_id,omitempty"`

	// CodeSize is the runtime bytecode length in bytes.
	CodeSize int `json:"code_size,omitempty"`

	// Name is the ERC-20 name(), if available.
	Name string `json:"name,omitempty"`

	// Symbol is the ERC-20 symbol(), if available.
	Symbol string `json:"symbol,omitempty"`

	// Owner is the checksummed owner() result.
	Owner string `json:"owner,omitempty"`

	// OwnerFound is true when owner() returned an address.
	OwnerFound bool `json:"owner_found"`

	// OwnershipRenounced is true when owner() returned the zero address.
	OwnershipRenounced bool `json:"ownership_renounced"`

	// TransferPresent is true when the transfer selector appears in the bytecode.
	TransferPresent bool `json:"transfer_present"`

	// HoneypotRisk is true when transfer() could not be found.
	HoneypotRisk bool `json:"honeypot_risk"`

	// Error describes why the checks could not run.
	Error string `json:"error,omitempty"`
}

// Token returns "Name (SYMBOL)" or "Unknown Token".
func (o *OnChainResult) Token() string {
	if o.Name == "" && o.Symbol == "" {
		return "Unknown Token"
	}
	return fmt.Sprintf("%s (%s)", o.Name, o.Symbol)
}

// Fields returns the ordered lines displayed for on-chain results.
func (o *OnChainResult) Fields() []KeyValue {
	if o.Error != "" {
		return []KeyValue{{Key: "error", Value: o.Error}}
	}

	owner := "⚠️ Owner() not found (may use custom access control)."
	if o.OwnerFound {
		owner = o.Owner
		if o.OwnershipRenounced {
			owner += " (renounced)"
		}
	}

	transfer := "❌ Missing transfer()"
	honeypot := "🔴 Possible Honeypot (transfer() missing)"
	if o.TransferPresent {
		transfer = "✅ Transfer function exists"
		honeypot = "🟢 Transfer function present"
	}

	return []KeyValue{
		{Key: "token", Value: o.Token()},
		{Key: "owner", Value: owner},
		{Key: "transfer_test", Value: transfer},
		{Key: "honeypot_risk", Value: honeypot},
	}
}
