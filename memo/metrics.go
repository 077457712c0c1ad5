package memo

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type tableMetrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	stores  prometheus.Counter
	clears  prometheus.Counter
	entries prometheus.Gauge
}

func newTableMetrics(reg prometheus.Registerer, table string) (*tableMetrics, error) {
	labels := prometheus.Labels{"table": table}
	m := &tableMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemac", Subsystem: "memo", Name: "hits_total",
			ConstLabels: labels, Help: "Total number of memo table hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemac", Subsystem: "memo", Name: "misses_total",
			ConstLabels: labels, Help: "Total number of memo table misses",
		}),
		stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemac", Subsystem: "memo", Name: "stores_total",
			ConstLabels: labels, Help: "Total number of resolved fragments stored",
		}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemac", Subsystem: "memo", Name: "clears_total",
			ConstLabels: labels, Help: "Total number of memo table clears",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "schemac", Subsystem: "memo", Name: "entries",
			ConstLabels: labels, Help: "Current number of memo table entries",
		}),
	}
	var err error
	if m.hits, err = register(reg, m.hits); err != nil {
		return nil, err
	}
	if m.misses, err = register(reg, m.misses); err != nil {
		return nil, err
	}
	if m.stores, err = register(reg, m.stores); err != nil {
		return nil, err
	}
	if m.clears, err = register(reg, m.clears); err != nil {
		return nil, err
	}
	if m.entries, err = register(reg, m.entries); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers collector or returns already registered one, so a table
// re-created after Release keeps counting into the same series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// All record methods accept nil receiver - metrics are optional.

func (m *tableMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *tableMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *tableMetrics) recordStore(size int) {
	if m != nil {
		m.stores.Inc()
		m.entries.Set(float64(size))
	}
}

func (m *tableMetrics) recordClear() {
	if m != nil {
		m.clears.Inc()
		m.entries.Set(0)
	}
}
