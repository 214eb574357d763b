// Package progress carries cooperative progress reporting and cancellation
// through long analyses.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is returned by an analysis stopped at a yield point.
var ErrCancelled = errors.New("cancelled")

// Report is delivered at each yield point.
type Report struct {
	Percent float64
	Message string
}

// Func receives reports. Returning false requests cancellation.
type Func func(Report) bool

// DefaultEvery is the yield cadence in work units.
const DefaultEvery = 32

// Tracker counts work units and yields every Every units. A nil *Tracker is
// valid and never cancels.
type Tracker struct {
	ctx   context.Context
	fn    Func
	every int

	mu        sync.Mutex
	done      int
	total     int
	message   string
	cancelled bool
}

// New returns a Tracker for ctx. fn may be nil; every ≤ 0 uses DefaultEvery.
func New(ctx context.Context, fn Func, every int) *Tracker {
	if ctx == nil {
		ctx = context.Background()
	}
	if every <= 0 {
		every = DefaultEvery
	}
	return &Tracker{ctx: ctx, fn: fn, every: every}
}

// Begin sets the expected work for the next phase.
func (t *Tracker) Begin(total int, message string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.done, t.total, t.message = 0, total, message
	t.mu.Unlock()
}

// Step adds n work units and yields when a cadence boundary is crossed.
func (t *Tracker) Step(n int) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	before := t.done / t.every
	t.done += n
	cross := t.done/t.every != before || (t.total > 0 && t.done >= t.total)
	t.mu.Unlock()
	if !cross {
		return t.check()
	}
	return t.Yield()
}

// Yield reports progress unconditionally and checks for cancellation.
func (t *Tracker) Yield() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	r := Report{Message: t.message}
	if t.total > 0 {
		r.Percent = 100 * float64(t.done) / float64(t.total)
		if r.Percent > 100 {
			r.Percent = 100
		}
	}
	t.mu.Unlock()
	if t.fn != nil && !t.fn(r) {
		t.mu.Lock()
		t.cancelled = true
		t.mu.Unlock()
	}
	return t.check()
}

func (t *Tracker) check() error {
	t.mu.Lock()
	c := t.cancelled
	t.mu.Unlock()
	if c {
		return fmt.Errorf("%w by progress callback", ErrCancelled)
	}
	if err := t.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}
