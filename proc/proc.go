// Package proc is a minimal stand-in for the cooperative "protothreads"
// scheduler a real embedded build runs on: a full scheduler is out of
// scope here, but the timer manager and its mainloop caller still need
// exactly two primitives from whatever scheduler is present: marking a
// named process runnable from interrupt context, and waiting in a
// process for that run signal.
//
// This is written fresh rather than adapted from an existing
// implementation, in the same doc-comment and invariant-assertion idiom
// as the rest of this repository.
package proc

import (
	"context"
	"sync"

	"github.com/james-orcales/softtimer/invariant"
)

// Process is a named cooperative task. It suspends only at Wait: there is
// no preemption, so a process runs uninterrupted between one Wait call
// and the next.
type Process struct {
	name string
	wake chan struct{}
}

// Wait blocks until MarkRunnable(name) has been called at least once since
// the last Wait returned, or until ctx is cancelled. Mirrors idle.Flag's
// latch discipline: a MarkRunnable that happens before Wait is called is
// not lost.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scheduler is the contract the timer manager (and any other mainloop
// component) consumes from the external cooperative scheduler: register a
// named process, and mark one runnable from ISR/backend-callback context.
type Scheduler interface {
	Register(name string) *Process
	MarkRunnable(name string)
}

// Cooperative is a reference Scheduler good enough to drive cmd/timersim
// and this package's own tests: single mainloop goroutine model, processes
// distinguished only by name, each with its own latched wake channel.
type Cooperative struct {
	mu        sync.Mutex
	processes map[string]*Process
}

// NewCooperative constructs an empty Cooperative scheduler.
func NewCooperative() *Cooperative {
	return &Cooperative{processes: make(map[string]*Process)}
}

// Register creates (or returns the existing) Process for name. Registering
// the same name twice returns the same *Process: the set of named
// processes in a real build is fixed at compile time, so callers are
// expected to register each name exactly once and hold onto the result.
func (s *Cooperative) Register(name string) *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.processes[name]; ok {
		return p
	}
	p := &Process{name: name, wake: make(chan struct{}, 1)}
	s.processes[name] = p
	return p
}

// MarkRunnable is called from ISR/backend-callback context: it holds the
// scheduler mutex only for the name lookup, then does a non-blocking
// channel send, so it never waits on the woken process.
func (s *Cooperative) MarkRunnable(name string) {
	s.mu.Lock()
	p, ok := s.processes[name]
	s.mu.Unlock()
	invariant.Always(ok, "proc.Cooperative.MarkRunnable: unregistered process name")

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

var _ Scheduler = (*Cooperative)(nil)
