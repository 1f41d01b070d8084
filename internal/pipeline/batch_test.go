package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nao1215/sentinel/internal/model"
)

// scoreStep marks the report analyzed with a fixed score.
func scoreStep(score int) *mockStep {
	return &mockStep{name: "score", doFunc: func(_ context.Context, r *model.ContractReport) error {
		r.RiskScore = score
		r.Analyzed = true
		return nil
	}}
}

// collect runs the batch and returns the reports in target order.
func collect(ctx context.Context, bp *BatchProcessor, targets []Target) ([]*model.ContractReport, error) {
	reports := make([]*model.ContractReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.ContractReport, index int) {
		reports[index] = report
	})
	return reports, err
}

func TestBatchProcessorPreservesOrder(t *testing.T) {
	t.Parallel()

	targets := []Target{
		{Address: weth, Chain: model.ChainEthereum},
		{Address: usdt, Chain: model.ChainBSC},
		{Address: weth, Chain: model.ChainPolygon},
	}
	scores := map[model.Chain]int{model.ChainEthereum: 90, model.ChainBSC: 60, model.ChainPolygon: 30}

	bp := NewBatchProcessor(func(target Target) (*Pipeline, error) {
		p := New(WithLogger(discardLogger()))
		p.AddStep(scoreStep(scores[target.Chain]))
		return p, nil
	}, WithConcurrency(2), WithBatchLogger(discardLogger()))

	reports, err := collect(context.Background(), bp, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != len(targets) {
		t.Fatalf("expected %d reports, got %d", len(targets), len(reports))
	}
	for i, r := range reports {
		if r.Address != targets[i].Address || r.Chain != targets[i].Chain {
			t.Errorf("report %d is for %s/%s", i, r.Chain, r.Address)
		}
		if r.RiskScore != scores[targets[i].Chain] {
			t.Errorf("report %d score = %d", i, r.RiskScore)
		}
	}
}

func TestBatchProcessorRecordsFactoryError(t *testing.T) {
	t.Parallel()

	factoryErr := errors.New("no rpc url")
	bp := NewBatchProcessor(func(Target) (*Pipeline, error) {
		return nil, factoryErr
	}, WithBatchLogger(discardLogger()))

	reports, err := collect(context.Background(), bp, []Target{{Address: weth, Chain: model.ChainEthereum}})
	if err != nil {
		t.Fatalf("factory errors must not abort the batch, got %v", err)
	}
	if !errors.Is(reports[0].Error, factoryErr) {
		t.Errorf("expected factory error on report, got %v", reports[0].Error)
	}
}

func TestBatchProcessorContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(func(target Target) (*Pipeline, error) {
		p := New(WithLogger(discardLogger()))
		if target.Chain == model.ChainBSC {
			p.AddStep(&mockStep{name: "fail", doFunc: func(context.Context, *model.ContractReport) error {
				return errors.New("boom")
			}})
		} else {
			p.AddStep(scoreStep(100))
		}
		return p, nil
	}, WithBatchLogger(discardLogger()))

	var mu sync.Mutex
	seen := make(map[int]*model.ContractReport)
	err := bp.ProcessBatchWithCallback(context.Background(), []Target{
		{Address: usdt, Chain: model.ChainBSC},
		{Address: weth, Chain: model.ChainEthereum},
	}, func(report *model.ContractReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = report
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(seen))
	}
	if seen[0].ErrorMessage != "fail: boom" {
		t.Errorf("expected failure recorded, got %q", seen[0].ErrorMessage)
	}
	if seen[1].RiskScore != 100 {
		t.Errorf("expected second scan to complete, got score %d", seen[1].RiskScore)
	}
}

func TestBatchProcessorCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := NewBatchProcessor(func(Target) (*Pipeline, error) {
		return New(WithLogger(discardLogger())), nil
	}, WithConcurrency(1), WithBatchLogger(discardLogger()))

	if _, err := collect(ctx, bp, []Target{{Address: weth, Chain: model.ChainEthereum}}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
