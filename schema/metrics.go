package schema

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type repoMetrics struct {
	reloads  *prometheus.CounterVec
	duration prometheus.Histogram
	classes  prometheus.Gauge
	objects  prometheus.Gauge
}

func newRepoMetrics(reg prometheus.Registerer) (*repoMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	var (
		m   repoMetrics
		err error
	)
	if m.reloads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schemac",
		Subsystem: "repo",
		Name:      "reloads_total",
		Help:      "Number of schema resolution passes by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schemac",
		Subsystem: "repo",
		Name:      "reload_seconds",
		Help:      "Duration of schema resolution passes.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})); err != nil {
		return nil, err
	}
	if m.classes, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "schemac",
		Subsystem: "repo",
		Name:      "classes",
		Help:      "Number of event classes in published snapshot.",
	})); err != nil {
		return nil, err
	}
	if m.objects, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "schemac",
		Subsystem: "repo",
		Name:      "objects",
		Help:      "Number of objects in published snapshot.",
	})); err != nil {
		return nil, err
	}
	return &m, nil
}

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

func (m *repoMetrics) observe(seconds float64, snap *Snapshot, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.classes.Set(float64(len(snap.Classes)))
	m.objects.Set(float64(len(snap.Objects)))
}
