package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
)

// sweepInterval is the minimum time between two expiry sweeps
const sweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed keys in a map. It backs the audit
// handler when Redis is not configured, so duplicates are only suppressed
// within one process. Expired keys are swept lazily by MarkProcessed.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	expiry    map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{expiry: make(map[string]time.Time), now: time.Now}
}

func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	if exp, ok := s.expiry[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[key]
	return ok && s.now().Before(exp), nil
}

func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expiry, key)
	s.mu.Unlock()
	return nil
}

// Close is a no-op; the store holds no background resources
func (s *InMemoryIdempotencyStore) Close() error { return nil }

// sweep drops expired keys; callers hold mu
func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	for key, exp := range s.expiry {
		if !now.Before(exp) {
			delete(s.expiry, key)
		}
	}
	s.lastSweep = now
}

func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
