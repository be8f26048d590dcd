/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package scheduler

import (
	"sync"
	"time"

	"github.com/fennec-im/fennec/log"
)

// Scheduler fires named callbacks after a given delay, optionally repeating.
//
// Callbacks are handed to the runner function the scheduler was built with,
// so they execute on the same path as stream I/O callbacks and must not block.
type Scheduler struct {
	runFn   func(func())
	mu      sync.Mutex
	entries map[string]*entry
	stopped bool
}

type entry struct {
	name      string
	interval  time.Duration
	cb        func()
	repeat    bool
	timer     *time.Timer
	cancelled bool
}

// New returns an initialized scheduler that executes due callbacks
// through runFn. A nil runFn executes callbacks in the timer goroutine.
func New(runFn func(func())) *Scheduler {
	if runFn == nil {
		runFn = func(fn func()) { fn() }
	}
	return &Scheduler{
		runFn:   runFn,
		entries: make(map[string]*entry),
	}
}

// Schedule registers a named callback to fire after delay.
// Scheduling over an existing name silently replaces the prior timer.
func (s *Scheduler) Schedule(name string, delay time.Duration, cb func(), repeat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.entries[name]; ok {
		prev.cancelled = true
		prev.timer.Stop()
	}
	e := &entry{
		name:     name,
		interval: delay,
		cb:       cb,
		repeat:   repeat,
	}
	e.timer = time.AfterFunc(delay, func() { s.fire(e) })
	s.entries[name] = e
}

// Cancel removes a named timer. Cancelling is idempotent: a missing
// name is a no-op.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		log.Debugf("scheduler: tried to cancel unscheduled entry: %s", name)
		return
	}
	e.cancelled = true
	e.timer.Stop()
	delete(s.entries, name)
}

// CancelAll removes every registered timer.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.entries {
		e.cancelled = true
		e.timer.Stop()
		delete(s.entries, name)
	}
}

// Stop cancels every registered timer and prevents any further scheduling
// or re-arming of repeating entries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for name, e := range s.entries {
		e.cancelled = true
		e.timer.Stop()
		delete(s.entries, name)
	}
}

func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	if e.cancelled || s.stopped {
		s.mu.Unlock()
		return
	}
	if e.repeat {
		// interval is measured from firing time, not from the original due time
		e.timer = time.AfterFunc(e.interval, func() { s.fire(e) })
	} else {
		delete(s.entries, e.name)
	}
	s.mu.Unlock()

	s.runFn(e.cb)
}
