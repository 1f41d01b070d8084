// Package analyzer scores verified Solidity source for rug pull and
// honeypot indicators.
//
// # Rules
//
// A Rule is a case-insensitive substring pattern with a signed score impact.
// The built-in rules cover owner access control, minting, blacklists,
// tx.origin authentication and ownership renouncement. Additional rules can be
// declared in the configuration file and are evaluated after the built-ins.
//
// # Scoring
//
// Every contract starts at 100. Each rule fires at most once and adds its
// impact. Rules with a negative impact count as issues. A contract with no
// issues receives a "no known risks" finding and a +10 bonus. The result is
// clamped to 0..100 and mapped to a risk level:
//
//	score >= 80  Low Risk
//	score >= 50  Moderate Risk
//	otherwise    High Risk
//
// Contracts without published source are not scanned. They receive a single
// critical finding and a fixed score of 20.
//
// Pattern matching is a triage signal, not an audit. A "mint" match may be a
// perfectly safe, capped mint function.
package analyzer
