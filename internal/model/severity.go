package model

import "strings"

// Severity represents the risk level of a finding.
// Higher values are more severe, so severities sort numerically.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct risk.
	// Examples: token metadata, renounced ownership.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor or positive observations.
	// Examples: onlyOwner access control, a renounceOwnership function.
	SeverityLow

	// SeverityMedium indicates privileged logic that warrants a manual review.
	// Examples: mint functions, blacklist logic.
	SeverityMedium

	// SeverityHigh indicates patterns that are commonly abused against holders.
	// Examples: tx.origin authentication, a missing transfer function.
	SeverityHigh

	// SeverityCritical indicates that the contract cannot be reviewed at all.
	// Example: unverified source code.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a case-insensitive severity name into a Severity.
// The second return value is false when the name is not recognized.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INFO":
		return SeverityInfo, true
	case "LOW":
		return SeverityLow, true
	case "MEDIUM":
		return SeverityMedium, true
	case "HIGH":
		return SeverityHigh, true
	case "CRITICAL":
		return SeverityCritical, true
	default:
		return SeverityInfo, false
	}
}

// Finding type identifiers produced by the analyzers.
const (
	FindingUnverifiedSource   = "unverified_source"
	FindingOnlyOwner          = "access_control_only_owner"
	FindingMintFunction       = "mint_function"
	FindingBlacklistLogic     = "blacklist_logic"
	FindingTxOrigin           = "tx_origin"
	FindingRenounceOwnership  = "renounce_ownership"
	FindingNoKnownRisks       = "no_known_risks"
	FindingPossibleHoneypot   = "possible_honeypot"
	FindingOwnerNotFound      = "owner_not_found"
	FindingOwnershipRenounced = "ownership_renounced"
	FindingChainIDMismatch    = "chain_id_mismatch"
	FindingProxyContract      = "proxy_contract"
	FindingCustomRule         = "custom_rule"
)

// FindingInfo contains metadata about a finding type including severity,
// impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata.
// This centralized mapping ensures consistent risk assessment across the application.
var findingInfoMapping = map[string]FindingInfo{
	FindingUnverifiedSource: {
		Severity:       SeverityCritical,
		Impact:         "The source code is not published, so none of the contract's privileged logic can be reviewed.",
		Recommendation: "Avoid interacting with the contract until the source is verified on a block explorer.",
	},
	FindingTxOrigin: {
		Severity:       SeverityHigh,
		Impact:         "Authorization based on tx.origin can be bypassed by a malicious intermediate contract (phishing).",
		Recommendation: "Check that authorization uses msg.sender instead of tx.origin.",
	},
	FindingPossibleHoneypot: {
		Severity:       SeverityHigh,
		Impact:         "Without a transfer function holders may be unable to move or sell their tokens.",
		Recommendation: "Do not buy the token until selling has been verified with a small amount.",
	},
	FindingMintFunction: {
		Severity:       SeverityMedium,
		Impact:         "An unrestricted mint function lets the owner inflate the supply and drain liquidity.",
		Recommendation: "Confirm that minting is capped or restricted to a trusted, time-locked role.",
	},
	FindingBlacklistLogic: {
		Severity:       SeverityMedium,
		Impact:         "Blacklist logic can block selected holders from selling (a common rug pull mechanism).",
		Recommendation: "Review who controls the blacklist and whether it can target arbitrary holders.",
	},
	FindingChainIDMismatch: {
		Severity:       SeverityMedium,
		Impact:         "The RPC endpoint serves a different chain than requested, so on-chain results may be wrong.",
		Recommendation: "Check the RPC URL configured for this chain.",
	},
	FindingProxyContract: {
		Severity:       SeverityMedium,
		Impact:         "Proxy contracts can be upgraded, so the reviewed logic may be replaced at any time.",
		Recommendation: "Review the implementation contract and who controls upgrades.",
	},
	FindingOnlyOwner: {
		Severity:       SeverityLow,
		Impact:         "Privileged functions are guarded by an owner role.",
		Recommendation: "Check which functions are owner-only and whether ownership has been renounced.",
	},
	FindingRenounceOwnership: {
		Severity:       SeverityLow,
		Impact:         "The owner can give up privileged control of the contract.",
		Recommendation: "Confirm on-chain whether ownership has actually been renounced.",
	},
	FindingNoKnownRisks: {
		Severity:       SeverityLow,
		Impact:         "None of the known risk patterns were found in the source.",
		Recommendation: "Pattern matching is not an audit; review the contract before investing.",
	},
	FindingCustomRule: {
		Severity:       SeverityMedium,
		Impact:         "A pattern from the local rule set matched the source.",
		Recommendation: "Review the matching lines against the rule's intent.",
	},
	FindingOwnerNotFound: {
		Severity:       SeverityInfo,
		Impact:         "The contract does not expose owner(); it may use custom access control.",
		Recommendation: "Inspect the source for roles or other privileged accounts.",
	},
	FindingOwnershipRenounced: {
		Severity:       SeverityInfo,
		Impact:         "owner() returns the zero address, so owner-only functions can no longer be called.",
		Recommendation: "No action needed.",
	},
}

// GetSeverity returns the severity level for a finding type.
// Returns SeverityInfo if the finding type is not in the mapping.
func GetSeverity(findingType string) Severity {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding type.
// Returns a default FindingInfo with SeverityInfo if the type is not in the mapping.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess risk.",
	}
}
