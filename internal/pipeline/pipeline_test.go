package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/sentinel/internal/model"
)

var (
	weth = model.MustParseAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdt = model.MustParseAddress("0x55d398326f99059fF775485246999027B3197955")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.ContractReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.ContractReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// softStep is a mockStep whose failures do not stop the pipeline.
type softStep struct {
	mockStep
}

func (s *softStep) Recoverable() bool {
	return true
}

func failWith(err error) func(context.Context, *model.ContractReport) error {
	return func(context.Context, *model.ContractReport) error { return err }
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.ContractReport) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New(WithLogger(discardLogger()))
		p.AddStep(record("a"))
		p.AddSteps(record("b"), record("c"))

		report := model.NewContractReport(weth, model.ChainEthereum)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"a", "b", "c"}
		if diff := cmp.Diff(want, order); diff != "" {
			t.Errorf("execution order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, report.PerformedScans); diff != "" {
			t.Errorf("performed scans mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stops at a failing step", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("analyzer crashed")
		failing := &mockStep{name: "analyze", doFunc: failWith(stepErr)}
		after := &mockStep{name: "after"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(failing, after)

		report := model.NewContractReport(weth, model.ChainEthereum)
		err := p.Execute(context.Background(), report)
		if !errors.Is(err, stepErr) {
			t.Fatalf("expected step error, got %v", err)
		}
		if FailedStep(err) != "analyze" {
			t.Errorf("failed step = %q", FailedStep(err))
		}
		if after.callCount != 0 {
			t.Error("expected later step to be skipped")
		}
		if report.ErrorMessage != "analyze: analyzer crashed" {
			t.Errorf("expected error recorded in report, got %q", report.ErrorMessage)
		}
		if len(report.PerformedScans) != 0 {
			t.Errorf("performed scans = %v", report.PerformedScans)
		}
	})

	t.Run("recoverable failures run the next steps", func(t *testing.T) {
		t.Parallel()

		explorerErr := errors.New("explorer down")
		rpcErr := errors.New("rpc down")
		fetch := &softStep{mockStep{name: "fetch", doFunc: failWith(explorerErr)}}
		analyze := &mockStep{name: "analyze"}
		check := &softStep{mockStep{name: "check", doFunc: failWith(rpcErr)}}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(fetch, analyze, check)

		report := model.NewContractReport(weth, model.ChainEthereum)
		err := p.Execute(context.Background(), report)
		if !errors.Is(err, explorerErr) || !errors.Is(err, rpcErr) {
			t.Fatalf("expected both failures, got %v", err)
		}
		if FailedStep(err) != "fetch" {
			t.Errorf("failed step = %q", FailedStep(err))
		}
		if analyze.callCount != 1 {
			t.Error("expected analyze to run after a recoverable failure")
		}
		// The first failure is the one kept on the report.
		if !errors.Is(report.Error, explorerErr) || errors.Is(report.Error, rpcErr) {
			t.Errorf("report error = %v", report.Error)
		}
		if diff := cmp.Diff([]string{"fetch", "analyze", "check"}, report.PerformedScans); diff != "" {
			t.Errorf("performed scans mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("masks credentials in recorded errors", func(t *testing.T) {
		t.Parallel()

		const key = "abcdef0123456789abcdef0123456789"
		dialErr := errors.New(`Post "https://mainnet.infura.io/v3/` + key + `": dial tcp: connection refused`)
		check := &softStep{mockStep{name: "check", doFunc: failWith(dialErr)}}

		p := New(WithLogger(discardLogger()))
		p.AddStep(check)

		report := model.NewContractReport(weth, model.ChainEthereum)
		err := p.Execute(context.Background(), report)
		if strings.Contains(err.Error(), key) || strings.Contains(report.ErrorMessage, key) {
			t.Errorf("credential leaked: %q / %q", err, report.ErrorMessage)
		}
		if !errors.Is(report.Error, dialErr) {
			t.Errorf("expected original error to stay reachable, got %v", report.Error)
		}
	})

	t.Run("marks report timed out on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *model.ContractReport) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(first, second)

		report := model.NewContractReport(weth, model.ChainEthereum)
		if err := p.Execute(ctx, report); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !report.TimedOut {
			t.Error("expected TimedOut to be set")
		}
		if second.callCount != 0 {
			t.Error("expected second step to be skipped")
		}
	})
}

func TestFailedStep(t *testing.T) {
	t.Parallel()

	if got := FailedStep(errors.New("plain")); got != "" {
		t.Errorf("FailedStep(plain) = %q", got)
	}
	wrapped := errors.Join(errors.New("other"), &StepError{Step: "onchain_check", Err: errors.New("x")})
	if got := FailedStep(wrapped); got != "onchain_check" {
		t.Errorf("FailedStep(joined) = %q", got)
	}
}
