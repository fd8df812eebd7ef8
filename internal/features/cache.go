package features

import (
	"sync"
	"time"

	"github.com/tradeguru/engine/internal/observ"
)

// SnapshotCache maps symbol to the last computed feature snapshot. Entries
// self-invalidate by timestamp comparison at read time, so no eviction thread
// exists; Sweep bounds growth by dropping symbols that left the universe.
// Shared-read, single-writer-per-key: concurrent writers for the same symbol
// serialize on the mutex and last write wins, which is safe because snapshots
// are timestamp-comparable and equivalent within the TTL window.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]*FeatureSnapshot
	ttl     time.Duration
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]*FeatureSnapshot),
		ttl:     ttl,
	}
}

// Get returns the cached snapshot when it is still fresh. Readers are never
// blocked by in-flight fetches.
func (c *SnapshotCache) Get(symbol string, now time.Time) (*FeatureSnapshot, bool) {
	c.mu.RLock()
	snap, ok := c.entries[symbol]
	c.mu.RUnlock()

	if !ok || !snap.Fresh(now, c.ttl) {
		observ.IncCounter("snapshot_cache_misses_total", nil)
		return nil, false
	}
	observ.IncCounter("snapshot_cache_hits_total", nil)
	return snap, true
}

// Put replaces the entry atomically. Snapshots are never mutated in place.
func (c *SnapshotCache) Put(snap *FeatureSnapshot) {
	c.mu.Lock()
	c.entries[snap.Symbol] = snap
	c.mu.Unlock()
}

// Sweep drops entries whose symbol is absent from keep. Called at the end of
// each scan cycle with the current universe plus open-position symbols.
func (c *SnapshotCache) Sweep(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for symbol := range c.entries {
		if !keep[symbol] {
			delete(c.entries, symbol)
			observ.IncCounter("snapshot_cache_evictions_total", nil)
		}
	}
}

// Len reports the live entry count (stale included until swept or replaced).
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
