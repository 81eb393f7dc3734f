package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smc-signal-engine/internal/analysis"
)

// Key identifies one cooldown slot
type Key struct {
	Symbol    string
	Timeframe analysis.Timeframe
	Direction analysis.Direction
}

// String renders the key for external stores
func (k Key) String() string {
	return fmt.Sprintf("cooldown:%s:%s:%s", k.Symbol, k.Timeframe, k.Direction)
}

// Store suppresses re-emission of equivalent signals. Reserve performs the
// check-then-update as a single atomic operation: it returns true and
// records the emission time only when the key is outside its cooldown
// window; otherwise it returns false and leaves the record untouched.
type Store interface {
	Reserve(ctx context.Context, key Key, now time.Time) (bool, error)
}

// MemoryStore is the in-process cooldown store. A single mutex guards the
// record map so two concurrent evaluations for the same key cannot both
// pass the check before either records.
type MemoryStore struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[Key]time.Time
}

// NewMemoryStore creates an in-memory cooldown store
func NewMemoryStore(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MemoryStore{
		interval: interval,
		last:     make(map[Key]time.Time),
	}
}

// Reserve implements Store
func (s *MemoryStore) Reserve(_ context.Context, key Key, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.last[key]; ok && now.Sub(last) < s.interval {
		return false, nil
	}
	s.last[key] = now
	return true, nil
}

// Last returns the recorded emission time for a key, if any
func (s *MemoryStore) Last(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.last[key]
	return t, ok
}

// Prune drops records older than the cooldown interval
func (s *MemoryStore) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.last {
		if now.Sub(t) >= s.interval {
			delete(s.last, k)
		}
	}
}
