// Package model defines the core data structures used throughout Sentinel.
//
// This package contains the following main types:
//   - Address and Chain: validated EVM addresses and supported networks
//   - Finding and Severity: individual observations and their risk level
//   - ContractReport: The main scan result structure
//   - OnChainResult: what the JSON-RPC checks learned about a contract
//   - SimpleReport: A summarized, human-readable report
//
// The analyzer, onchain, report and bot packages all share these types.
package model
