package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:webhook:event:"

// ProcessedEventRepository implements repository.ProcessedEventRepository
// using SET NX so concurrent deliveries of one event have a single winner.
type ProcessedEventRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProcessedEventRepository creates a new Redis-backed processed event store.
func NewProcessedEventRepository(client *redis.Client, ttl time.Duration) *ProcessedEventRepository {
	return &ProcessedEventRepository{
		client: client,
		ttl:    ttl,
	}
}

// Claim records eventID with the configured TTL.
func (r *ProcessedEventRepository) Claim(ctx context.Context, eventID string) (bool, error) {
	key := keyPrefix + eventID

	ok, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim event %s: %w", eventID, err)
	}

	return ok, nil
}
