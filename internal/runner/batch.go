package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/adaptest/internal/model"
)

// Job is one run of a batch.
type Job struct {
	Request   RunRequest
	Processor ItemProcessor
	// Progress overrides the runner's reporter for this job.
	Progress Reporter
}

// Outcome is the result of one Job. Outcomes keep the order of the jobs.
type Outcome struct {
	Request RunRequest
	Result  *model.Result
	Err     error
}

// RunAll runs jobs concurrently, at most limit at a time (limit <= 0 means no
// bound). A failed job does not stop the others.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, limit int) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := r.driver(job.Progress).run(ctx, job.Request, job.Processor)
			outcomes[i] = Outcome{Request: job.Request, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
