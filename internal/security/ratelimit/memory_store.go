package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// windowEntry is one key's counter within the current fixed window.
type windowEntry struct {
	count int
	reset time.Time
}

// MemoryStore keeps counters and blocks in a TTL cache. Entries expire with
// their window (or block) and the cache janitor reclaims them between
// explicit sweeps.
type MemoryStore struct {
	mu      sync.Mutex
	entries *gocache.Cache
	blocks  *gocache.Cache
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. The janitor interval bounds how
// long fully-expired entries linger without an explicit Sweep.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: gocache.New(gocache.NoExpiration, 5*time.Minute),
		blocks:  gocache.New(gocache.NoExpiration, 5*time.Minute),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock creates an in-memory store with an overridden time
// source, for tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

// Incr adds one to the key's counter, starting a new window when none is
// active or the previous one lapsed.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.entries.Get(key); ok {
		entry := v.(*windowEntry)
		if now.Before(entry.reset) {
			entry.count++
			return entry.count, entry.reset, nil
		}
	}

	entry := &windowEntry{count: 1, reset: now.Add(window)}
	s.entries.Set(key, entry, window)
	return entry.count, entry.reset, nil
}

// Peek returns the current count and reset time without incrementing.
func (s *MemoryStore) Peek(_ context.Context, key string) (int, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries.Get(key)
	if !ok {
		return 0, time.Time{}, false, nil
	}
	entry := v.(*windowEntry)
	if !s.now().Before(entry.reset) {
		return 0, time.Time{}, false, nil
	}
	return entry.count, entry.reset, true, nil
}

// Remove deletes the key's counter.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(key)
	return nil
}

// SetBlock marks the key blocked until the given time.
func (s *MemoryStore) SetBlock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks.Set(key, until, until.Sub(s.now()))
	return nil
}

// GetBlock returns the block expiry when the key is blocked.
func (s *MemoryStore) GetBlock(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.blocks.Get(key)
	if !ok {
		return time.Time{}, false, nil
	}
	until := v.(time.Time)
	if !s.now().Before(until) {
		s.blocks.Delete(key)
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// Sweep drops entries whose window and block have both lapsed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.entries.ItemCount() + s.blocks.ItemCount()
	s.entries.DeleteExpired()
	s.blocks.DeleteExpired()
	return before - s.entries.ItemCount() - s.blocks.ItemCount(), nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Flush()
	s.blocks.Flush()
	return nil
}
