package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	logging "github.com/nao1215/sentinel/internal/log"
	"github.com/nao1215/sentinel/internal/model"
)

// Step is one stage of a contract scan. Steps run in order and share the
// report, so a later step sees what earlier steps recorded.
type Step interface {
	// Name is recorded in ContractReport.PerformedScans.
	Name() string

	// Do runs the step against report.
	Do(ctx context.Context, report *model.ContractReport) error
}

// Recoverable is implemented by steps that leave the report usable when
// they fail. The failure is recorded and the next step still runs.
type Recoverable interface {
	Recoverable() bool
}

// StepError is the failure of one step.
type StepError struct {
	// Step is the name of the failed step.
	Step string

	// Err is the error returned by the step.
	Err error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the step's error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the name of the first failed step in err, or "" when
// err carries no StepError.
func FailedStep(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

// Pipeline runs the steps of one scan.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order. A failing step that is not Recoverable
// stops the scan. Recoverable failures are kept and joined into the
// returned error once every step has run.
//
// The first failure is stored on the report with URL credentials masked,
// since report errors end up in saved files and chat messages.
func (p *Pipeline) Execute(ctx context.Context, report *model.ContractReport) error {
	var failures []error

	for _, step := range p.steps {
		logger := p.logger.With(
			"step", step.Name(),
			"chain", report.Chain,
			"address", report.Address.String(),
		)

		if err := ctx.Err(); err != nil {
			logger.Warn("scan cancelled", "reason", err)
			report.TimedOut = true
			return errors.Join(append(failures, err)...)
		}

		started := time.Now()
		err := step.Do(ctx, report)
		if err == nil {
			logger.Debug("step completed", "elapsed", time.Since(started))
			report.PerformedScans = append(report.PerformedScans, step.Name())
			continue
		}

		stepErr := logging.RedactError(&StepError{Step: step.Name(), Err: err})
		if report.Error == nil {
			report.SetError(stepErr)
		}
		if !recoverable(step) {
			logger.Error("step failed", "error", err)
			return errors.Join(append(failures, stepErr)...)
		}
		logger.Warn("step failed, continuing", "error", err)
		failures = append(failures, stepErr)
		report.PerformedScans = append(report.PerformedScans, step.Name())
	}

	return errors.Join(failures...)
}

func recoverable(step Step) bool {
	r, ok := step.(Recoverable)
	return ok && r.Recoverable()
}
