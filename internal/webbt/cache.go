package webbt

import (
	"sort"
	"sync"
)

// peripheralCache is the single source of truth for known devices across
// calls. Entries are added on selection or explicit lookup and removed only
// by Forget; a cached handle may represent a currently-disconnected device.
// Reads dominate (listings, lookups), so the cache uses an RWMutex.
type peripheralCache struct {
	mu          sync.RWMutex
	peripherals map[string]Peripheral
}

func newPeripheralCache() *peripheralCache {
	return &peripheralCache{peripherals: make(map[string]Peripheral)}
}

func (c *peripheralCache) get(id string) (Peripheral, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peripherals[id]
	return p, ok
}

// put inserts or replaces. Concurrent discoveries may race to insert the
// same id; last writer wins, the handles represent the same device.
func (c *peripheralCache) put(p Peripheral) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peripherals[p.ID()] = p
}

func (c *peripheralCache) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.peripherals[id]; !ok {
		return false
	}
	delete(c.peripherals, id)
	return true
}

// list returns a snapshot sorted by id for stable output.
func (c *peripheralCache) list() []Peripheral {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Peripheral, 0, len(c.peripherals))
	for _, p := range c.peripherals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
