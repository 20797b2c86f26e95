package shared

import (
	"context"
	"time"
)

// IdempotencyStore records processed keys so that a repeated event or
// request is handled at most once within the TTL.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Claim stores value under key unless the key is already held.
	// When it is, the stored value is returned with claimed=false.
	Claim(ctx context.Context, key, value string, ttl time.Duration) (existing string, claimed bool, err error)

	// Release forgets a key so the operation can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// DefaultIdempotencyTTL is how long processed keys are remembered
const DefaultIdempotencyTTL = 24 * time.Hour
