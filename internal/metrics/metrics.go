// Package metrics exposes Prometheus counters for crawls, fetches, cache
// lookups and searches.
//
// Each Metrics owns its registry, so several instances (one per test, for
// example) never collide on registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cssfinder"

// Metrics holds the collectors of one cssfinder process.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched  prometheus.Counter
	bytesFetched  prometheus.Counter
	fetchFailures *prometheus.CounterVec
	crawls        prometheus.Counter
	crawlDuration prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	searches      *prometheus.CounterVec
	matches       prometheus.Counter
}

// New creates a Metrics with all collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of pages successfully fetched",
		}),
		bytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_fetched_total",
			Help:      "Total bytes downloaded",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of failed fetches by failure kind",
		}, []string{"kind"}),
		crawls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "Total number of crawls run against the network",
		}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Wall-clock duration of crawls",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Crawl cache lookups by result (hit or miss)",
		}, []string{"result"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by search kind",
		}, []string{"kind"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Total number of matching elements returned by searches",
		}),
	}
	m.registry.MustRegister(
		m.pagesFetched,
		m.bytesFetched,
		m.fetchFailures,
		m.crawls,
		m.crawlDuration,
		m.cacheLookups,
		m.searches,
		m.matches,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PageFetched records a successfully fetched page of size bytes.
func (m *Metrics) PageFetched(size int) {
	m.pagesFetched.Inc()
	m.bytesFetched.Add(float64(size))
}

// FetchFailed records a failed fetch.
func (m *Metrics) FetchFailed(kind string) {
	m.fetchFailures.WithLabelValues(kind).Inc()
}

// CrawlFinished records a crawl that ran against the network.
func (m *Metrics) CrawlFinished(d time.Duration) {
	m.crawls.Inc()
	m.crawlDuration.Observe(d.Seconds())
}

// CacheLookup records a crawl cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SearchDone records a search of the given kind and its match count.
func (m *Metrics) SearchDone(kind string, matches int) {
	m.searches.WithLabelValues(kind).Inc()
	m.matches.Add(float64(matches))
}
