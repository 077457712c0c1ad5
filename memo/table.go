// Package memo implements the resolution cache: a key to value table which
// guarantees that an included schema fragment is parsed and resolved at most
// once per session. Tables never evict, entries live until Clear.
package memo

import (
	"sync"
)

// Table is a concurrency safe memo table keyed by home relative fragment
// path.
type Table[V any] struct {
	name    string
	mu      sync.RWMutex
	items   map[string]V
	stats   *Statistics
	metrics *tableMetrics // optional
}

func newTable[V any](name string, metrics *tableMetrics) *Table[V] {
	return &Table[V]{
		name:    name,
		items:   make(map[string]V),
		stats:   NewStatistics(),
		metrics: metrics,
	}
}

// Name returns table identity.
func (t *Table[V]) Name() string {
	return t.name
}

// Lookup returns cached value for the key if any. It never blocks on a
// resolution in progress.
func (t *Table[V]) Lookup(key string) (V, bool) {
	t.mu.RLock()
	value, exists := t.items[key]
	t.mu.RUnlock()

	if exists {
		t.stats.Hit()
		t.metrics.recordHit()
	} else {
		t.stats.Miss()
		t.metrics.recordMiss()
	}
	return value, exists
}

// Store inserts value under the key and returns it unchanged.
func (t *Table[V]) Store(key string, value V) V {
	t.mu.Lock()
	t.items[key] = value
	size := len(t.items)
	t.mu.Unlock()

	t.stats.Store()
	t.stats.UpdateSize(int64(size))
	t.metrics.recordStore(size)
	return value
}

// Clear removes all entries. The table itself stays usable.
func (t *Table[V]) Clear() {
	t.mu.Lock()
	t.items = make(map[string]V)
	t.mu.Unlock()

	t.stats.Clear()
	t.stats.UpdateSize(0)
	t.metrics.recordClear()
}

// Size returns the current number of entries.
func (t *Table[V]) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Keys returns all keys currently in the table, in no particular order.
func (t *Table[V]) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.items))
	for key := range t.items {
		keys = append(keys, key)
	}
	t.mu.RUnlock()
	return keys
}

// Stats returns table statistics, never nil.
func (t *Table[V]) Stats() *Statistics {
	return t.stats
}
