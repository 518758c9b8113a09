package cache

import (
	"context"
	"sync"
)

// MemoryCache is the CACHE_TYPE=memory backend (spec §6): an in-process,
// namespace-partitioned map. `obrad run` uses it whenever CacheType is
// not "redis"; `obrad once` always uses it.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ Cache = (*MemoryCache)(nil)

// NewMemory constructs an empty MemoryCache.
func NewMemory() *MemoryCache {
	return &MemoryCache{data: make(map[string]map[string][]byte)}
}

func (c *MemoryCache) Clear(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, namespace)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns, ok := c.data[namespace]
	if !ok {
		return nil, false, nil
	}
	v, ok := ns[key]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, namespace, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		c.data[namespace] = ns
	}
	ns[key] = value
	return nil
}

func (c *MemoryCache) Close() error { return nil }
