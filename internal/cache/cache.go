// Package cache memoizes the record-store entry count consumed by the stats
// reporter, so the admin stats endpoint cannot hammer the store. Supports a
// local in-memory backend and Redis for multi-instance deployments.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached count stays fresh.
const DefaultTTL = 15 * time.Second

// CountSnapshot is the cached record-store count.
type CountSnapshot struct {
	Count    int64     `json:"count"`
	CachedAt time.Time `json:"cached_at"`
}

// Fresh reports whether the snapshot is younger than the given TTL.
func (s *CountSnapshot) Fresh(ttl time.Duration) bool {
	return s != nil && time.Since(s.CachedAt) < ttl
}

// CountCache stores the most recent record-store count.
// Implementations must be safe for concurrent use.
type CountCache interface {
	// Get retrieves the cached snapshot. Returns nil, nil when empty.
	Get(ctx context.Context) (*CountSnapshot, error)

	// Set stores a snapshot.
	Set(ctx context.Context, snapshot *CountSnapshot) error

	// Close releases any resources held by the cache.
	Close() error
}
