// Package provider defines the byte store underneath the output cache.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// bytes passed to Set for that key. The keyspace "out:<ns>:" belongs to
// variantcache; foreign values written there fail framing validation and are
// deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
// Single-key Get and Set are assumed atomic; the output cache never performs
// read-modify-write on one key.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO/remote errors return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
