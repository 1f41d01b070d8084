// Package scanner builds per-chain scan pipelines from configuration and
// persists their results.
//
// A full scan fetches the verified source, runs the static rules and then
// the on-chain checks. A score scan stops after the static rules. Completed
// full scans are written to the report directory and the database.
package scanner
