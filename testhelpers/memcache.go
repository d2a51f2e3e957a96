package testhelpers

import (
	"context"
	"sync"
	"time"

	"docarchive/internal/models"
)

// MemCache is an in-memory caching.CacheService with the same generation
// rules as the redis one. TTLs are ignored.
type MemCache struct {
	mu          sync.Mutex
	generations map[string]int64
	snapshots   map[string]models.TreeSnapshot
}

func NewMemCache() *MemCache {
	return &MemCache{
		generations: make(map[string]int64),
		snapshots:   make(map[string]models.TreeSnapshot),
	}
}

func (c *MemCache) TreeGeneration(ctx context.Context, scope models.Scope) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[scope.Key()], nil
}

func (c *MemCache) GetTree(ctx context.Context, scope models.Scope) (*models.TreeSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot, ok := c.snapshots[scope.Key()]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

func (c *MemCache) SetTree(ctx context.Context, scope models.Scope, snapshot *models.TreeSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[scope.Key()] = *snapshot
	return nil
}

func (c *MemCache) InvalidateScope(ctx context.Context, scope models.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[scope.Key()]++
	delete(c.snapshots, scope.Key())
	return nil
}

func (c *MemCache) InvalidateAllCache(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = make(map[string]models.TreeSnapshot)
	return nil
}

func (c *MemCache) Ping(ctx context.Context) error { return nil }

// Snapshot returns the stored snapshot of a scope, if any.
func (c *MemCache) Snapshot(scope models.Scope) (models.TreeSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot, ok := c.snapshots[scope.Key()]
	return snapshot, ok
}
