package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed keys (commit client tokens) so
// replays can be detected without touching the ledger
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL
	// Returns true if the key was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets a key so it can be marked again. Used when the
	// operation guarded by the key failed and the client may retry it
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
