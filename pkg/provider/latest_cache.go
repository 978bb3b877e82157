package provider

import (
	"context"
	"sync"
)

// latestCache memoizes latest-version lookups per (kind, package) pair.
// Access to each key is serialized: only one query per key is in flight at a
// time, and later callers reuse the stored answer. Failed lookups are retried
// on the next call rather than cached.
type latestCache struct {
	mu      sync.Mutex
	entries map[string]*latestEntry
}

type latestEntry struct {
	mu      sync.Mutex
	version string
	valid   bool
}

func newLatestCache() *latestCache {
	return &latestCache{entries: make(map[string]*latestEntry)}
}

func (c *latestCache) get(ctx context.Context, kind, name string, fn LatestFunc) (string, error) {
	key := kind + "/" + name

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &latestEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.valid {
		return entry.version, nil
	}

	version, err := fn(ctx, name)
	if err != nil {
		return "", err
	}

	entry.version = version
	entry.valid = true
	return version, nil
}
