package requirements

import (
	"context"
	"sync"
)

// Scheduler coalesces evaluation requests. A request made while a run is in
// progress marks one follow-up run; any further requests before it starts
// are absorbed into it.
type Scheduler struct {
	run func(ctx context.Context)

	mu      sync.Mutex
	running bool
	pending bool
	runs    int
}

// NewScheduler wraps run.
func NewScheduler(run func(ctx context.Context)) *Scheduler {
	return &Scheduler{run: run}
}

// Request runs the evaluation now, or marks it pending when one is already
// running. It reports whether this caller performed the run(s).
func (s *Scheduler) Request(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.pending = true
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.mu.Unlock()

	for {
		s.run(ctx)
		s.mu.Lock()
		s.runs++
		if !s.pending || ctx.Err() != nil {
			s.running = false
			s.pending = false
			s.mu.Unlock()
			return true
		}
		s.pending = false
		s.mu.Unlock()
	}
}

// Runs returns the number of completed runs.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Busy reports whether a run is in progress.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
