package revocation

import (
	"context"
	"sync"
	"time"

	"peticao/pkg/platform/sentinel"
)

// MemoryCache is an in-process Cache used in development, unit tests,
// and as the fallback when redis is not configured.
type MemoryCache struct {
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot
	endpoints map[string][]string
}

type memorySnapshot struct {
	snap      *Snapshot
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory revocation cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		snapshots: make(map[string]memorySnapshot),
		endpoints: make(map[string][]string),
	}
}

func (c *MemoryCache) GetSnapshot(_ context.Context, authority string) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.snapshots[authority]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return entry.snap, nil
}

// PutSnapshot swaps the authority's snapshot atomically; readers that
// already hold the old pointer keep a consistent view.
func (c *MemoryCache) PutSnapshot(_ context.Context, snap *Snapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snap.Authority] = memorySnapshot{
		snap:      snap,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Endpoints(_ context.Context, authority string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.endpoints[authority]...), nil
}

func (c *MemoryCache) RegisterEndpoint(_ context.Context, authority, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.endpoints[authority] {
		if existing == url {
			return nil
		}
	}
	c.endpoints[authority] = append(c.endpoints[authority], url)
	return nil
}
