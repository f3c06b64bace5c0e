// Package runner drives adaptive test runs against the service.
//
// Run and Replay block until the run is finished. Start and StartReplay run
// the same driver on a new goroutine and return a *Pending immediately. Both
// forms produce identical results for identical service replies and
// processor answers.
package runner

import (
	"context"
	"log/slog"

	"github.com/pavelanni/adaptest/internal/model"
)

// DefaultMaxItems is the progress cap used when the service does not
// provide one.
const DefaultMaxItems = 150

// RunRequest describes a new adaptive run.
type RunRequest struct {
	TestID     string
	ProjectID  string
	Experiment string
	Metadata   model.RunMetadata
	// WithResponses includes the per-item records in the result.
	WithResponses bool
}

// ReplayRequest describes a replay of a previous run's item sequence.
type ReplayRequest struct {
	PreviousRunID string
	Metadata      model.RunMetadata
	WithResponses bool
}

// Runner runs sessions on a shared Service.
type Runner struct {
	svc      Service
	maxItems int
	progress Reporter
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgress sets the reporter called after every answered item.
func WithProgress(r Reporter) Option {
	return func(rn *Runner) {
		if r != nil {
			rn.progress = r
		}
	}
}

// WithMaxItems sets the item count assumed for progress totals while a run
// is still going. It never stops a run.
func WithMaxItems(n int) Option {
	return func(rn *Runner) {
		if n > 0 {
			rn.maxItems = n
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) {
		if l != nil {
			rn.logger = l
		}
	}
}

// New creates a Runner. If svc has a MaxItems method its value is the
// default progress cap.
func New(svc Service, opts ...Option) *Runner {
	r := &Runner{
		svc:      svc,
		maxItems: DefaultMaxItems,
		progress: Nop,
		logger:   slog.Default(),
	}
	if m, ok := svc.(interface{ MaxItems() int }); ok && m.MaxItems() > 0 {
		r.maxItems = m.MaxItems()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) driver(progress Reporter) *driver {
	if progress == nil {
		progress = r.progress
	}
	return &driver{
		svc:      r.svc,
		maxItems: r.maxItems,
		progress: progress,
		logger:   r.logger,
	}
}

// Run performs an adaptive run and blocks until the service completes it.
func (r *Runner) Run(ctx context.Context, req RunRequest, proc ItemProcessor) (*model.Result, error) {
	return r.driver(nil).run(ctx, req, proc)
}

// Replay answers the recorded items of a previous run and blocks until the
// replay is stored.
func (r *Runner) Replay(ctx context.Context, req ReplayRequest, proc ItemProcessor) (*model.Result, error) {
	return r.driver(nil).replay(ctx, req, proc)
}

// Start begins an adaptive run on a new goroutine.
func (r *Runner) Start(ctx context.Context, req RunRequest, proc ItemProcessor) *Pending {
	d := r.driver(nil)
	return startPending(func() (*model.Result, error) {
		return d.run(ctx, req, proc)
	})
}

// StartReplay begins a replay on a new goroutine.
func (r *Runner) StartReplay(ctx context.Context, req ReplayRequest, proc ItemProcessor) *Pending {
	d := r.driver(nil)
	return startPending(func() (*model.Result, error) {
		return d.replay(ctx, req, proc)
	})
}
