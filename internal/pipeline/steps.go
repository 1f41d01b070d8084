package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sentinel/internal/analyzer"
	"github.com/nao1215/sentinel/internal/explorer"
	"github.com/nao1215/sentinel/internal/metrics"
	"github.com/nao1215/sentinel/internal/model"
	"github.com/nao1215/sentinel/internal/onchain"
)

// Step names recorded in ContractReport.PerformedScans.
const (
	StepSourceFetch    = "source_fetch"
	StepStaticAnalysis = "static_analysis"
	StepOnChainCheck   = "onchain_check"
)

// SourceFetcher fetches verified contract source. *explorer.Client implements it.
type SourceFetcher interface {
	GetSourceCode(ctx context.Context, address model.Address) (*explorer.SourceInfo, error)
}

// SourceCache stores explorer results. *database.ScanDB implements it.
type SourceCache interface {
	// GetSource returns a cached result younger than maxAge.
	GetSource(ctx context.Context, address model.Address, chain model.Chain, maxAge time.Duration) (*explorer.SourceInfo, bool, error)

	// PutSource stores a result.
	PutSource(ctx context.Context, address model.Address, chain model.Chain, info *explorer.SourceInfo) error
}

// OnChainChecker runs the RPC checks. *onchain.Checker implements it.
type OnChainChecker interface {
	Check(ctx context.Context, address model.Address, implementation *model.Address) (*onchain.Result, error)
}

// SourceFetchStep loads the contract source from the explorer, going through
// the cache when one is configured.
type SourceFetchStep struct {
	fetcher SourceFetcher
	cache   SourceCache
	ttl     time.Duration
	logger  *slog.Logger
}

// SourceFetchStepOption configures a SourceFetchStep.
type SourceFetchStepOption func(*SourceFetchStep)

// WithSourceCache enables caching of verified sources for ttl.
// A zero ttl disables the cache.
func WithSourceCache(cache SourceCache, ttl time.Duration) SourceFetchStepOption {
	return func(s *SourceFetchStep) {
		s.cache = cache
		s.ttl = ttl
	}
}

// WithSourceFetchLogger sets a custom logger.
func WithSourceFetchLogger(logger *slog.Logger) SourceFetchStepOption {
	return func(s *SourceFetchStep) {
		s.logger = logger
	}
}

// NewSourceFetchStep creates a new source fetch step.
func NewSourceFetchStep(fetcher SourceFetcher, opts ...SourceFetchStepOption) *SourceFetchStep {
	s := &SourceFetchStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SourceFetchStep) Name() string {
	return StepSourceFetch
}

// Recoverable reports that a failed lookup still leaves a scorable report:
// without source the contract is scored as unverified.
func (s *SourceFetchStep) Recoverable() bool {
	return true
}

// Do executes the source fetch step.
func (s *SourceFetchStep) Do(ctx context.Context, report *model.ContractReport) error {
	cacheEnabled := s.cache != nil && s.ttl > 0

	if cacheEnabled {
		info, ok, err := s.cache.GetSource(ctx, report.Address, report.Chain, s.ttl)
		switch {
		case err != nil:
			s.logger.Warn("source cache lookup failed", "error", err)
		case ok:
			metrics.RecordSourceCache(true)
			s.logger.Debug("source cache hit", "address", report.Address.String())
			applySource(report, info)
			return nil
		}
		metrics.RecordSourceCache(false)
	}

	info, err := s.fetcher.GetSourceCode(ctx, report.Address)
	if err != nil {
		report.Verified = false
		report.SourceCode = ""
		return fmt.Errorf("failed to fetch contract source: %w", err)
	}
	applySource(report, info)

	// Unverified results are not cached; the contract may be verified later.
	if cacheEnabled && info.Verified {
		if err := s.cache.PutSource(ctx, report.Address, report.Chain, info); err != nil {
			s.logger.Warn("failed to cache contract source", "error", err)
		}
	}
	return nil
}

func applySource(report *model.ContractReport, info *explorer.SourceInfo) {
	report.Verified = info.Verified
	report.SourceCode = info.SourceCode
	report.ContractName = info.ContractName
	report.CompilerVersion = info.CompilerVersion
	if info.IsProxy {
		report.Implementation = info.Implementation
		report.AddFinding(model.NewFinding(
			model.FindingProxyContract,
			"Upgradeable proxy contract.",
			info.Implementation,
			"explorer",
		))
	}
}

// StaticAnalysisStep scores the fetched source with the pattern rules.
// Reports without verified source score as unverified.
type StaticAnalysisStep struct {
	analyzer *analyzer.Analyzer
}

// NewStaticAnalysisStep creates a new static analysis step.
func NewStaticAnalysisStep(a *analyzer.Analyzer) *StaticAnalysisStep {
	if a == nil {
		a = analyzer.New()
	}
	return &StaticAnalysisStep{analyzer: a}
}

// Name returns the step name.
func (s *StaticAnalysisStep) Name() string {
	return StepStaticAnalysis
}

// Do executes the static analysis step.
func (s *StaticAnalysisStep) Do(ctx context.Context, report *model.ContractReport) error {
	source := report.SourceCode
	if !report.Verified {
		source = ""
	}
	result, err := s.analyzer.Analyze(ctx, source)
	if err != nil {
		return fmt.Errorf("static analysis failed: %w", err)
	}
	result.Apply(report)
	return nil
}

// OnChainStep queries the contract over JSON-RPC.
type OnChainStep struct {
	checker OnChainChecker
	logger  *slog.Logger
}

// NewOnChainStep creates a new on-chain check step.
func NewOnChainStep(checker OnChainChecker, logger *slog.Logger) *OnChainStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnChainStep{checker: checker, logger: logger}
}

// Name returns the step name.
func (s *OnChainStep) Name() string {
	return StepOnChainCheck
}

// Recoverable reports that RPC failures never discard the static result.
func (s *OnChainStep) Recoverable() bool {
	return true
}

// Do executes the on-chain check step. The result is attached to the
// report even when the check fails, so users see the connection message.
func (s *OnChainStep) Do(ctx context.Context, report *model.ContractReport) error {
	var implementation *model.Address
	if report.Implementation != "" {
		impl, err := model.ParseAddress(report.Implementation)
		if err != nil {
			s.logger.Debug("ignoring invalid implementation address",
				"implementation", report.Implementation, "error", err)
		} else {
			implementation = &impl
		}
	}

	result, err := s.checker.Check(ctx, report.Address, implementation)
	if result != nil {
		report.OnChain = result.OnChain
		for _, f := range result.Findings {
			report.AddFinding(f)
		}
	}
	if err != nil {
		return fmt.Errorf("on-chain check failed: %w", err)
	}
	return nil
}
