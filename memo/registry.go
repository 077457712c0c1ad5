package memo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrOwned is returned by Ensure when table with requested name already
// exists and belongs to somebody else.
var ErrOwned = errors.New("memo table is owned by another composer")

// Registry keeps named memo tables and remembers who created each of them.
// It replaces process wide state: every session creates (or shares) a
// registry explicitly.
type Registry[V any] struct {
	mu     sync.Mutex
	tables map[string]registered[V]
	reg    prometheus.Registerer
}

type registered[V any] struct {
	owner any
	table *Table[V]
}

// NewRegistry creates empty registry. When reg is not nil every table created
// by the registry exposes its statistics as Prometheus metrics.
func NewRegistry[V any](reg prometheus.Registerer) *Registry[V] {
	return &Registry[V]{
		tables: make(map[string]registered[V]),
		reg:    reg,
	}
}

// Ensure returns table with requested name creating it if absent. Asking for
// an existing table with a different owner is a programming error and is
// reported as ErrOwned.
func (r *Registry[V]) Ensure(name string, owner any) (*Table[V], error) {
	if owner == nil {
		return nil, errors.New("memo table owner must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.tables[name]; ok {
		if e.owner != owner {
			return nil, fmt.Errorf("ensure table %q: %w", name, ErrOwned)
		}
		return e.table, nil
	}

	var metrics *tableMetrics
	if r.reg != nil {
		var err error
		if metrics, err = newTableMetrics(r.reg, name); err != nil {
			return nil, fmt.Errorf("unable to register metrics for memo table %q: %w", name, err)
		}
	}
	t := newTable[V](name, metrics)
	r.tables[name] = registered[V]{owner: owner, table: t}
	return t, nil
}

// Release forgets the table if it is owned by owner. Metrics registered for
// the table stay with the Prometheus registerer.
func (r *Registry[V]) Release(name string, owner any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.tables[name]; ok && e.owner == owner {
		e.table.Clear()
		delete(r.tables, name)
	}
}

// Names returns names of all registered tables.
func (r *Registry[V]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	return names
}
