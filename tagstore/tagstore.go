// Package tagstore tracks invalidation generations for dependency tags.
//
// Every output cache entry records the generation of each of its dependency
// tags at write time. Bumping a tag moves its generation forward, so entries
// written before the bump no longer validate and are discarded on read.
package tagstore

import (
	"context"
	"time"
)

// TagStore abstracts where tag generations live.
// Use Local (default) for a single process, or Redis when several replicas
// share one cache provider and must observe each other's invalidations.
type TagStore interface {
	// Snapshot returns the current generation of tag; missing => 0.
	Snapshot(ctx context.Context, tag string) (uint64, error)
	// SnapshotMany returns generations for many tags; missing => 0.
	SnapshotMany(ctx context.Context, tags []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation of tag.
	Bump(ctx context.Context, tag string) (uint64, error)
	// Cleanup prunes tags not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
