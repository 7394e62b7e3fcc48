package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memoryEntry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// MemoryCache is a process-local backend used by tests and cache-less
// deployments. Values round-trip through JSON like the Redis backend so the
// two are interchangeable.
type MemoryCache struct {
	entries *xsync.MapOf[string, memoryEntry]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: xsync.NewMapOf[string, memoryEntry]()}
}

func (c *MemoryCache) Get(ctx context.Context, key Key, dest any) error {
	entry, ok := c.entries.Load(key.String())
	if !ok {
		return ErrMiss
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.entries.Delete(key.String())
		return ErrMiss
	}
	return json.Unmarshal(entry.data, dest)
}

func (c *MemoryCache) Set(ctx context.Context, key Key, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	c.entries.Store(key.String(), entry)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...Key) error {
	for _, k := range keys {
		c.entries.Delete(k.String())
	}
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.entries.Clear()
	return nil
}
