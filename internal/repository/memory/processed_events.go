package memory

import (
	"context"
	"sync"
	"time"
)

// ProcessedEventRepository is an in-memory processed event store for
// single-instance deployments. Entries expire after the TTL and are removed
// lazily.
type ProcessedEventRepository struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewProcessedEventRepository creates a new in-memory store.
func NewProcessedEventRepository(ttl time.Duration) *ProcessedEventRepository {
	return &ProcessedEventRepository{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Claim marks eventID as processed unless it already is.
func (r *ProcessedEventRepository) Claim(_ context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if ts, ok := r.entries[eventID]; ok && now.Sub(ts) <= r.ttl {
		return false, nil
	}

	r.entries[eventID] = now
	r.sweep(now)
	return true, nil
}

// sweep drops expired entries once the map has grown.
func (r *ProcessedEventRepository) sweep(now time.Time) {
	if len(r.entries) < 1024 {
		return
	}
	for id, ts := range r.entries {
		if now.Sub(ts) > r.ttl {
			delete(r.entries, id)
		}
	}
}

// Len returns the number of entries, including expired ones not yet swept.
func (r *ProcessedEventRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
