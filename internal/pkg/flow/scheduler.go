package flow

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs callbacks after a delay until it is stopped. Callbacks that
// did not fire by then never run.
type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	timers  map[uint64]*clock.Timer
	next    uint64
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler on clk.
func NewScheduler(clk clock.Clock) *Scheduler {
	return &Scheduler{
		clock:  clk,
		timers: map[uint64]*clock.Timer{},
	}
}

// Schedule runs fn on its own goroutine after d. It reports false when the
// scheduler is already stopped.
func (s *Scheduler) Schedule(d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	s.wg.Add(1)

	if d <= 0 {
		go func() {
			defer s.wg.Done()

			if !s.Stopped() {
				fn()
			}
		}()

		return true
	}

	id := s.next
	s.next++

	s.timers[id] = s.clock.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		stopped := s.stopped
		s.mu.Unlock()

		if live && !stopped {
			fn()
		}
	})

	return true
}

// Stop cancels every pending callback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.stopped = true

	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}

		delete(s.timers, id)
	}
}

// Stopped reports whether Stop was called.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped
}

// Pending is the number of callbacks waiting for their delay.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

// Wait blocks until every callback that fired has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
