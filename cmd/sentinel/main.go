// Package main provides the entry point for the Sentinel CLI.
//
// Sentinel scores EVM smart contracts for rug pull and honeypot risks. It
// reviews the verified source published on Blockscout and queries the
// contract over JSON-RPC.
//
// Usage:
//
//	sentinel scan <address> [--chain eth|bsc|polygon]
//	sentinel score <address>
//	sentinel bot
//
// See --help for all available options.
package main

// main is the entry point for Sentinel.
func main() {
	Execute()
}
