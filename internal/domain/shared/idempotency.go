package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed keys so a redelivered event is handled once
type IdempotencyStore interface {
	// MarkProcessed returns true if the key was newly marked, false if it was already present
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Forget removes a key so a failed handler can be retried
	Forget(ctx context.Context, key string) error
	Close() error
}
