package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/identity/pkg/clock"
	"github.com/Abraxas-365/identity/pkg/kernel"
)

// Task runs on every tick of its schedule. Returning false removes the
// schedule entry.
type Task func(ctx context.Context) bool

// Scheduler drives every connection's rotation from a single goroutine.
type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[kernel.ConnectionID]*entry
	wake    chan struct{}
}

type entry struct {
	id       kernel.ConnectionID
	interval time.Duration
	next     time.Time
	task     Task
}

func NewScheduler(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.Real{}
	}
	return &Scheduler{
		clock:   c,
		entries: make(map[kernel.ConnectionID]*entry),
		wake:    make(chan struct{}, 1),
	}
}

// Schedule runs task every interval, first one interval from now. An
// existing entry for id is replaced.
func (s *Scheduler) Schedule(id kernel.ConnectionID, interval time.Duration, task Task) {
	s.mu.Lock()
	s.entries[id] = &entry{
		id:       id,
		interval: interval,
		next:     s.clock.Now().Add(interval),
		task:     task,
	}
	s.mu.Unlock()
	s.notify()
}

// Cancel removes the entry for id and reports whether one existed.
func (s *Scheduler) Cancel(id kernel.ConnectionID) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return ok
}

func (s *Scheduler) Scheduled(id kernel.ConnectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Tick runs every due task and waits for them to finish. It returns the
// number of tasks run.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if !e.next.After(now) {
			e.next = now.Add(e.interval)
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range due {
		wg.Go(func() {
			if !e.task(ctx) {
				s.remove(e)
			}
		})
	}
	wg.Wait()
	return len(due)
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.Tick(ctx)

		var timer <-chan time.Time
		if d, ok := s.untilNext(); ok {
			timer = s.clock.After(d)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer:
		}
	}
}

func (s *Scheduler) untilNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next time.Time
	for _, e := range s.entries {
		if next.IsZero() || e.next.Before(next) {
			next = e.next
		}
	}
	if next.IsZero() {
		return 0, false
	}
	return next.Sub(s.clock.Now()), true
}

// remove only drops e if it has not been replaced in the meantime.
func (s *Scheduler) remove(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[e.id]; ok && cur == e {
		delete(s.entries, e.id)
	}
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
