package cache

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	cleans *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_cache_hits_total",
				Help: "Total number of resolution cache hits",
			},
			[]string{"namespace"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_cache_misses_total",
				Help: "Total number of resolution cache misses",
			},
			[]string{"namespace"},
		),
		cleans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_cache_cleans_total",
				Help: "Total number of resolution cache clean requests",
			},
			[]string{"namespace"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.cleans)
	}
	return m
}

// namespaceOf returns the part of a key or pattern before the first dot.
func namespaceOf(key string) string {
	ns, _, _ := strings.Cut(key, ".")
	return ns
}

func (m *metrics) hit(key string)       { m.hits.WithLabelValues(namespaceOf(key)).Inc() }
func (m *metrics) miss(key string)      { m.misses.WithLabelValues(namespaceOf(key)).Inc() }
func (m *metrics) clean(pattern string) { m.cleans.WithLabelValues(namespaceOf(pattern)).Inc() }
