package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/sentinel/internal/analyzer"
	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/explorer"
	"github.com/nao1215/sentinel/internal/metrics"
	"github.com/nao1215/sentinel/internal/model"
	"github.com/nao1215/sentinel/internal/netutil"
	"github.com/nao1215/sentinel/internal/onchain"
	"github.com/nao1215/sentinel/internal/pipeline"
	"github.com/nao1215/sentinel/internal/report"
)

// ErrNotAnalyzed is returned when a scan ended before the static rules ran.
var ErrNotAnalyzed = errors.New("contract was not analyzed")

// Mode selects which steps a scan runs.
type Mode string

const (
	// ModeFull runs static analysis and on-chain checks.
	ModeFull Mode = "full"

	// ModeScore runs static analysis only.
	ModeScore Mode = "score"
)

// Store persists scan results. *database.ScanDB implements it.
type Store interface {
	pipeline.SourceCache
	SaveScanReport(ctx context.Context, report *model.ContractReport) (int64, error)
}

// Result is one finished scan.
type Result struct {
	// Report is the scanned contract.
	Report *model.ContractReport

	// SavedPath is the JSON report file, empty when none was written.
	SavedPath string

	// RecordID is the database row id, zero when not stored.
	RecordID int64
}

// Service runs scans for every supported chain.
type Service struct {
	cfg      *config.Config
	analyzer *analyzer.Analyzer
	net      *netutil.Client
	http     *http.Client
	store    Store
	saver    *report.FileSaver
	logger   *slog.Logger

	mu       sync.Mutex
	fetchers map[model.Chain]pipeline.SourceFetcher
	checkers map[model.Chain]pipeline.OnChainChecker
}

// Option configures a Service.
type Option func(*Service)

// WithStore stores full scans and caches explorer results in store.
func WithStore(store Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithFileSaver writes a JSON file for every full scan.
func WithFileSaver(saver *report.FileSaver) Option {
	return func(s *Service) {
		s.saver = saver
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSourceFetcher replaces the explorer client of chain.
func WithSourceFetcher(chain model.Chain, fetcher pipeline.SourceFetcher) Option {
	return func(s *Service) {
		s.fetchers[chain] = fetcher
	}
}

// WithOnChainChecker replaces the RPC checker of chain.
func WithOnChainChecker(chain model.Chain, checker pipeline.OnChainChecker) Option {
	return func(s *Service) {
		s.checkers[chain] = checker
	}
}

// New creates a Service from cfg. Custom rules are compiled here so a bad
// rule fails before any request is made.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	rules := make([]analyzer.Rule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		rule, err := analyzer.CustomRule(rc.Pattern, rc.Title, rc.Impact, rc.Severity)
		if err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
		rules = append(rules, rule)
	}

	netClient, err := netutil.NewClient(
		netutil.WithProxy(cfg.ProxyAddress),
		netutil.WithTimeout(cfg.Timeout),
		netutil.WithUserAgent(cfg.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		analyzer: analyzer.New(analyzer.WithRules(rules...)),
		net:      netClient,
		http:     netClient.NewHTTPClient(),
		logger:   slog.Default(),
		fetchers: make(map[model.Chain]pipeline.SourceFetcher),
		checkers: make(map[model.Chain]pipeline.OnChainChecker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckProxy verifies the configured SOCKS5 proxy before any scan is sent
// through it. It returns nil when no proxy is configured.
func (s *Service) CheckProxy(ctx context.Context) error {
	if err := s.net.CheckProxy(ctx); err != nil {
		return fmt.Errorf("proxy %s is not usable: %w", s.cfg.ProxyAddress, err)
	}
	return nil
}

// fetcher returns the explorer client of chain, creating it on first use.
func (s *Service) fetcher(chain model.Chain) (pipeline.SourceFetcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.fetchers[chain]; ok {
		return f, nil
	}
	client, err := explorer.NewClient(chain,
		explorer.WithHost(s.cfg.ChainConfig(chain).ExplorerHost),
		explorer.WithHTTPClient(s.http),
		explorer.WithRateLimit(rate.Limit(s.cfg.ExplorerRate), explorer.DefaultBurst),
		explorer.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	s.fetchers[chain] = client
	return client, nil
}

// checker returns the on-chain checker of chain, creating it on first use.
func (s *Service) checker(chain model.Chain) (pipeline.OnChainChecker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.checkers[chain]; ok {
		return c, nil
	}
	rpcURL := s.cfg.ChainConfig(chain).RPCURL
	if rpcURL == "" {
		rpcURL, _ = onchain.DefaultRPCURL(chain)
	}
	rpc, err := onchain.NewRPCClient(chain, rpcURL, s.http)
	if err != nil {
		return nil, err
	}
	checker := onchain.NewChecker(chain, rpc, s.logger)
	s.checkers[chain] = checker
	return checker, nil
}

// Pipeline builds the steps of mode for chain.
func (s *Service) Pipeline(chain model.Chain, mode Mode) (*pipeline.Pipeline, error) {
	if !chain.IsValid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedChain, chain)
	}

	fetcher, err := s.fetcher(chain)
	if err != nil {
		return nil, err
	}

	fetchOpts := []pipeline.SourceFetchStepOption{pipeline.WithSourceFetchLogger(s.logger)}
	if s.store != nil {
		fetchOpts = append(fetchOpts, pipeline.WithSourceCache(s.store, s.cfg.SourceCacheTTL))
	}

	p := pipeline.New(pipeline.WithLogger(s.logger))
	p.AddSteps(
		pipeline.NewSourceFetchStep(fetcher, fetchOpts...),
		pipeline.NewStaticAnalysisStep(s.analyzer),
	)

	if mode == ModeFull {
		checker, err := s.checker(chain)
		if err != nil {
			return nil, err
		}
		p.AddStep(pipeline.NewOnChainStep(checker, s.logger))
	}
	return p, nil
}

// Factory returns a pipeline factory for batch scans in mode.
func (s *Service) Factory(mode Mode) pipeline.Factory {
	return func(target pipeline.Target) (*pipeline.Pipeline, error) {
		return s.Pipeline(target.Chain, mode)
	}
}

// Scan runs a full scan of address and persists the result.
// Explorer and RPC failures are recorded on the report and do not fail the
// scan: a contract whose source could not be fetched scores as unverified.
func (s *Service) Scan(ctx context.Context, address model.Address, chain model.Chain) (*Result, error) {
	return s.run(ctx, address, chain, ModeFull)
}

// Score runs the static analysis of address only. Nothing is persisted.
func (s *Service) Score(ctx context.Context, address model.Address, chain model.Chain) (*Result, error) {
	return s.run(ctx, address, chain, ModeScore)
}

func (s *Service) run(ctx context.Context, address model.Address, chain model.Chain, mode Mode) (*Result, error) {
	start := time.Now()
	rep := model.NewContractReport(address, chain)

	p, err := s.Pipeline(chain, mode)
	if err != nil {
		return nil, err
	}
	execErr := p.Execute(ctx, rep)
	return s.finish(ctx, rep, mode, execErr, time.Since(start))
}

// ScanBatch scans targets concurrently, calling fn for each finished scan.
// Persisting failures are logged and do not stop the batch.
func (s *Service) ScanBatch(ctx context.Context, targets []pipeline.Target, mode Mode, fn func(res *Result, index int)) error {
	concurrency := s.cfg.BatchSize
	if concurrency > len(targets) {
		concurrency = len(targets)
	}
	bp := pipeline.NewBatchProcessor(s.Factory(mode),
		pipeline.WithConcurrency(concurrency),
		pipeline.WithBatchLogger(s.logger),
	)

	return bp.ProcessBatchWithCallback(ctx, targets, func(rep *model.ContractReport, index int) {
		res, _ := s.finish(ctx, rep, mode, rep.Error, time.Since(rep.DateScanned))
		fn(res, index)
	})
}

// finish records metrics and persists analyzed full scans. The returned
// Result is never nil, so callers can show partial output. Unanalyzed
// reports carry the error in Report.Error.
func (s *Service) finish(ctx context.Context, rep *model.ContractReport, mode Mode, execErr error, elapsed time.Duration) (*Result, error) {
	res := &Result{Report: rep}
	chain := rep.Chain.String()

	if execErr != nil {
		step := pipeline.FailedStep(execErr)
		if step == "" {
			step = "unknown"
		}
		metrics.RecordScanFailure(chain, step)
	}

	if !rep.Analyzed {
		if execErr == nil {
			execErr = ErrNotAnalyzed
		}
		if rep.Error == nil {
			rep.SetError(execErr)
		}
		return res, execErr
	}

	if execErr != nil {
		s.logger.Warn("scan completed with errors",
			"address", rep.Address.String(),
			"chain", rep.Chain,
			"error", execErr,
		)
	}
	metrics.RecordScan(chain, string(mode), string(rep.RiskLevel), elapsed)

	if mode != ModeFull {
		return res, nil
	}

	if s.saver != nil {
		path, err := s.saver.Save(rep)
		if err != nil {
			s.logger.Warn("failed to save report file", "error", err)
		} else {
			res.SavedPath = path
			s.logger.Info("report saved", "path", path)
		}
	}
	if s.store != nil {
		id, err := s.store.SaveScanReport(ctx, rep)
		if err != nil {
			s.logger.Warn("failed to save report to database", "error", err)
		} else {
			res.RecordID = id
		}
	}
	return res, nil
}
