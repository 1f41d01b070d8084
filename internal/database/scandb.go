package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sentinel/internal/explorer"
	"github.com/nao1215/sentinel/internal/model"
)

// FileName is the database file created in the database directory.
const FileName = "sentinel.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ScanDB provides SQLite-based storage for scan results, cached contract
// sources and per-user bot state. It is safe for concurrent use.
type ScanDB struct {
	db     *sql.DB
	dbPath string

	// now is replaced in tests.
	now func() time.Time
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so the bot and the CLI can read
	// while a scan is being saved.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScanDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scan first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (s *ScanDB) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *ScanDB) Path() string {
	return s.dbPath
}

func (s *ScanDB) createTables() error {
	schema := `
	-- Scan reports store complete scan results as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		chain TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		risk_level TEXT NOT NULL,
		report_json TEXT NOT NULL,
		risk_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_contract ON scan_reports(address, chain);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);

	-- Contract sources cache explorer lookups
	CREATE TABLE IF NOT EXISTS contract_sources (
		address TEXT NOT NULL,
		chain TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		info_json TEXT NOT NULL,
		PRIMARY KEY (address, chain)
	);

	-- Bot last scans back the /last command
	CREATE TABLE IF NOT EXISTS bot_last_scans (
		user_id INTEGER PRIMARY KEY,
		address TEXT NOT NULL,
		chain TEXT NOT NULL,
		summary TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveScanReport stores a completed scan and returns its id.
func (s *ScanDB) SaveScanReport(ctx context.Context, report *model.ContractReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	simple := model.NewSimpleReport(report)
	riskJSON, _ := json.Marshal(simple.SeverityCounts()) //nolint:errcheck,errchkjson // map[string]int always marshals

	result, err := s.db.ExecContext(ctx, `
	INSERT INTO scan_reports (address, chain, timestamp, risk_score, risk_level, report_json, risk_summary)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.Address.Hex(),
		report.Chain.String(),
		formatTime(report.DateScanned),
		report.RiskScore,
		string(report.RiskLevel),
		string(reportJSON),
		string(riskJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}
	return result.LastInsertId()
}

// GetLatestScanReport retrieves the most recent report for a contract.
// Returns ErrNotFound when the contract was never scanned.
func (s *ScanDB) GetLatestScanReport(ctx context.Context, address model.Address, chain model.Chain) (*model.ContractReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE address = ? AND chain = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, address.Hex(), chain.String()).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetScanReportByID retrieves a scan report by its database ID.
func (s *ScanDB) GetScanReportByID(ctx context.Context, id int64) (*model.ContractReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM scan_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetScanHistory retrieves all reports for a contract, newest first.
// Malformed rows are skipped.
func (s *ScanDB) GetScanHistory(ctx context.Context, address model.Address, chain model.Chain) ([]*model.ContractReport, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE address = ? AND chain = ?
	ORDER BY timestamp DESC, id DESC
	`, address.Hex(), chain.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ContractReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func decodeReport(reportJSON string) (*model.ContractReport, error) {
	var report model.ContractReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ScanReportMetadata contains summary information about a stored scan.
// It is used for history listings without loading full reports.
type ScanReportMetadata struct {
	ID          int64
	Address     model.Address
	Chain       model.Chain
	Timestamp   time.Time
	RiskScore   int
	RiskLevel   model.RiskLevel
	RiskSummary map[string]int
}

// GetScanHistoryWithMetadata retrieves scan metadata for a contract, newest first.
func (s *ScanDB) GetScanHistoryWithMetadata(ctx context.Context, address model.Address, chain model.Chain) ([]ScanReportMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, timestamp, risk_score, risk_level, risk_summary
	FROM scan_reports
	WHERE address = ? AND chain = ?
	ORDER BY timestamp DESC, id DESC
	`, address.Hex(), chain.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		meta := ScanReportMetadata{Address: address, Chain: chain}
		var (
			timestamp string
			level     string
			riskJSON  sql.NullString
		)
		if err := rows.Scan(&meta.ID, &timestamp, &meta.RiskScore, &level, &riskJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTime(timestamp)
		meta.RiskLevel = model.RiskLevel(level)

		meta.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = make(map[string]int)
			}
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ScannedContract summarizes one contract in the database.
type ScannedContract struct {
	Address     model.Address
	Chain       model.Chain
	Scans       int
	LastScanned time.Time
}

// ListScannedContracts returns every scanned contract, most recently scanned first.
func (s *ScanDB) ListScannedContracts(ctx context.Context) ([]ScannedContract, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT address, chain, COUNT(*), MAX(timestamp)
	FROM scan_reports
	GROUP BY address, chain
	ORDER BY MAX(timestamp) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []ScannedContract
	for rows.Next() {
		var (
			c         ScannedContract
			address   string
			chain     string
			timestamp string
		)
		if err := rows.Scan(&address, &chain, &c.Scans, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		if c.Address, err = model.ParseAddress(address); err != nil {
			continue
		}
		c.Chain = model.Chain(chain)
		c.LastScanned = parseTime(timestamp)
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// GetSource returns a cached explorer result younger than maxAge.
func (s *ScanDB) GetSource(ctx context.Context, address model.Address, chain model.Chain, maxAge time.Duration) (*explorer.SourceInfo, bool, error) {
	cutoff := formatTime(s.now().Add(-maxAge))

	var infoJSON string
	err := s.db.QueryRowContext(ctx, `
	SELECT info_json FROM contract_sources
	WHERE address = ? AND chain = ? AND fetched_at > ?
	`, address.Hex(), chain.String(), cutoff).Scan(&infoJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached source: %w", err)
	}

	var info explorer.SourceInfo
	if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
		return nil, false, fmt.Errorf("failed to parse cached source: %w", err)
	}
	return &info, true, nil
}

// PutSource stores an explorer result, replacing any previous one.
func (s *ScanDB) PutSource(ctx context.Context, address model.Address, chain model.Chain, info *explorer.SourceInfo) error {
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to serialize source: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO contract_sources (address, chain, fetched_at, info_json)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(address, chain) DO UPDATE SET
		fetched_at = excluded.fetched_at,
		info_json = excluded.info_json
	`, address.Hex(), chain.String(), formatTime(s.now()), string(infoJSON))
	if err != nil {
		return fmt.Errorf("failed to cache source: %w", err)
	}
	return nil
}

// PruneSources deletes cached sources older than maxAge and returns how
// many were removed.
func (s *ScanDB) PruneSources(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM contract_sources WHERE fetched_at <= ?`,
		formatTime(s.now().Add(-maxAge)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sources: %w", err)
	}
	return result.RowsAffected()
}

// LastScan is the most recent bot scan of one user.
type LastScan struct {
	Address   model.Address
	Chain     model.Chain
	Summary   string
	Timestamp time.Time
}

// SaveLastScan records the last scan of a bot user.
func (s *ScanDB) SaveLastScan(ctx context.Context, userID int64, scan LastScan) error {
	if scan.Timestamp.IsZero() {
		scan.Timestamp = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO bot_last_scans (user_id, address, chain, summary, timestamp)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		address = excluded.address,
		chain = excluded.chain,
		summary = excluded.summary,
		timestamp = excluded.timestamp
	`, userID, scan.Address.Hex(), scan.Chain.String(), scan.Summary, formatTime(scan.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to save last scan: %w", err)
	}
	return nil
}

// GetLastScan returns the last scan of a bot user, or ErrNotFound.
func (s *ScanDB) GetLastScan(ctx context.Context, userID int64) (*LastScan, error) {
	var (
		scan      LastScan
		address   string
		chain     string
		timestamp string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT address, chain, summary, timestamp FROM bot_last_scans WHERE user_id = ?
	`, userID).Scan(&address, &chain, &scan.Summary, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last scan: %w", err)
	}

	if scan.Address, err = model.ParseAddress(address); err != nil {
		return nil, fmt.Errorf("failed to parse stored address: %w", err)
	}
	scan.Chain = model.Chain(chain)
	scan.Timestamp = parseTime(timestamp)
	return &scan, nil
}
