package coordination

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a single-process Store for local runtime and tests.
// One mutex makes each operation atomic, which is the property the Redis
// backend gets from single-threaded command execution.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   Clock
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if _, ok := s.liveEntry(key, now); ok {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: expiry(now, ttl)}
	return true, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entry, ok := s.liveEntry(key, now)
	if !ok {
		s.entries[key] = memoryEntry{value: "1", expiresAt: expiry(now, ttl)}
		return 1, nil
	}
	count, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, err
	}
	count++
	entry.value = strconv.FormatInt(count, 10)
	s.entries[key] = entry
	return count, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key, s.clock.Now())
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, key string, expected string, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key, s.clock.Now())
	if !ok || entry.value != expected {
		return false, nil
	}
	entry.value = value
	s.entries[key] = entry
	return true, nil
}

func (s *MemoryStore) CompareAndDelete(_ context.Context, key string, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key, s.clock.Now())
	if !ok || entry.value != expected {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entry, ok := s.liveEntry(key, now)
	if !ok {
		return 0, ErrKeyNotFound
	}
	if entry.expiresAt.IsZero() {
		return -1, nil
	}
	return entry.expiresAt.Sub(now), nil
}

// Flush drops every entry, simulating a coordination backend restart.
func (s *MemoryStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
}

// liveEntry must be called with s.mu held. Expired entries are evicted lazily.
func (s *MemoryStore) liveEntry(key string, now time.Time) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
