package cache

import (
	"context"
	"sync"
)

// LocalCache implements CountCache in process memory.
// Suitable for single-instance deployments.
type LocalCache struct {
	mu       sync.RWMutex
	snapshot *CountSnapshot
}

// NewLocalCache creates an empty in-memory count cache.
func NewLocalCache() *LocalCache {
	return &LocalCache{}
}

// Get retrieves the cached snapshot.
func (c *LocalCache) Get(_ context.Context) (*CountSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return nil, nil
	}
	copied := *c.snapshot
	return &copied, nil
}

// Set stores a snapshot.
func (c *LocalCache) Set(_ context.Context, snapshot *CountSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snapshot == nil {
		c.snapshot = nil
		return nil
	}
	copied := *snapshot
	c.snapshot = &copied
	return nil
}

// Close is a no-op for the local cache.
func (c *LocalCache) Close() error {
	return nil
}
