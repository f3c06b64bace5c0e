package runner

import (
	"context"
	"errors"

	"github.com/pavelanni/adaptest/internal/model"
)

// ErrNotDone is returned by Pending.Result while the run is still going.
var ErrNotDone = errors.New("run still in progress")

// Pending is a run executing on its own goroutine.
//
// A panic inside the run (for example from a Reporter) is captured and
// raised again in the goroutine that calls Wait or Result.
type Pending struct {
	done     chan struct{}
	res      *model.Result
	err      error
	panicked any
}

func startPending(fn func() (*model.Result, error)) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if v := recover(); v != nil {
				p.panicked = v
			}
		}()
		p.res, p.err = fn()
	}()
	return p
}

// Done is closed when the run has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the run finishes or ctx is done. Abandoning the wait does
// not stop the run; cancel the context passed to Start for that.
func (p *Pending) Wait(ctx context.Context) (*model.Result, error) {
	select {
	case <-p.done:
		return p.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrNotDone.
func (p *Pending) Result() (*model.Result, error) {
	select {
	case <-p.done:
		return p.outcome()
	default:
		return nil, ErrNotDone
	}
}

func (p *Pending) outcome() (*model.Result, error) {
	if p.panicked != nil {
		panic(p.panicked)
	}
	return p.res, p.err
}
