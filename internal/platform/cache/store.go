package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/softball-stats/internal/platform/resilience"
)

// Loader produces the encoded value for a missing key.
type Loader func(ctx context.Context) ([]byte, error)

type entry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// Store is an in-process TTL cache of encoded responses. Concurrent misses
// for the same key share one loader call.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	flight     resilience.SingleFlight
	now        func() time.Time
}

type StoreOption func(*Store)

// WithMaxEntries bounds the number of keys held. Non-positive n means no
// bound.
func WithMaxEntries(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// NewStore keeps entries for ttl; a non-positive ttl never expires them.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) expired(e entry, now time.Time) bool {
	return s.ttl > 0 && !e.expiresAt.After(now)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.expired(e, s.now()) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (s *Store) Set(_ context.Context, key string, value []byte) {
	if key == "" {
		return
	}

	now := s.now()
	e := entry{value: value, storedAt: now}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictLocked(now)
	}
	s.entries[key] = e
}

// evictLocked drops every expired entry, then the oldest one if the store is
// still full.
func (s *Store) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, key)
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = key, e.storedAt
		}
	}
	if len(s.entries) >= s.maxEntries && oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

func (s *Store) Delete(_ context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.flight.Forget(key)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) GetOrLoad(ctx context.Context, key string, loader Loader) ([]byte, error) {
	return loadThrough(ctx, &s.flight, s, key, loader)
}

type getSetter interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// loadThrough is the read path shared by every backend: hit, or one
// coalesced loader call per key that fills the backend on success.
func loadThrough(ctx context.Context, flight *resilience.SingleFlight, backend getSetter, key string, loader Loader) ([]byte, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}
	if value, ok := backend.Get(ctx, key); ok {
		return value, nil
	}

	// The load is shared by every caller joining the key, so it keeps ctx
	// values but not its cancellation.
	shared := context.WithoutCancel(ctx)
	value, err, _ := flight.Do(key, func() (any, error) {
		if cached, ok := backend.Get(shared, key); ok {
			return cached, nil
		}
		loaded, err := loader(shared)
		if err != nil {
			return nil, err
		}
		backend.Set(shared, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	out, _ := value.([]byte)
	return out, nil
}
