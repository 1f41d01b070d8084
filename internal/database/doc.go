// Package database provides SQLite-based storage for Sentinel.
//
// ScanDB stores:
//   - scan reports, for history and comparison between scans
//   - explorer results, as a cache in front of rate-limited explorers
//   - the last scan of each bot user, for the /last command
//
// The database is a single file opened with the CGO-free modernc.org/sqlite
// driver in WAL mode.
package database
