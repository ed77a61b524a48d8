package kvmemory

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/identity/pkg/kvstore"
)

type item struct {
	value     string
	expiresAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// Store is a single-process kvstore.Store. Expired entries are dropped
// lazily on access and by Sweep.
type Store struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

var _ kvstore.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]item),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// lookup must be called with mu held.
func (s *Store) lookup(key string) (item, bool) {
	it, ok := s.items[key]
	if !ok {
		return item{}, false
	}
	if it.expired(s.now()) {
		delete(s.items, key)
		return item{}, false
	}
	return it, true
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key)
	return it.value, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = item{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *Store) GetDel(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key)
	if ok {
		delete(s.items, key)
	}
	return it.value, ok, nil
}

func (s *Store) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.items[key] = item{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
