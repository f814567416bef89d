package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docpack"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records
// nothing, so components can be used without a registry.
type Metrics struct {
	registry *prometheus.Registry

	documents       *prometheus.CounterVec
	archives        *prometheus.CounterVec
	archiveBytes    prometheus.Counter
	archiveDuration prometheus.Histogram
	rosterFetches   *prometheus.CounterVec
	rosterCache     *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry, together with the
// Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed for archives, by result (written, skipped).",
		}, []string{"result"}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_total",
			Help:      "Archives streamed, by kind (all, student) and result (ok, aborted).",
		}, []string{"kind", "result"}),
		archiveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_bytes_total",
			Help:      "Bytes of zip data written to clients.",
		}),
		archiveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_duration_seconds",
			Help:      "Time to stream one archive.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		rosterFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_fetches_total",
			Help:      "Roster reads made for listing and download requests, by result (ok, error).",
		}, []string{"result"}),
		rosterCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_cache_total",
			Help:      "Roster cache lookups, by result (hit, miss).",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documents,
		m.archives,
		m.archiveBytes,
		m.archiveDuration,
		m.rosterFetches,
		m.rosterCache,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// DocumentWritten counts a document appended to an archive
func (m *Metrics) DocumentWritten() {
	if m == nil {
		return
	}
	m.documents.WithLabelValues("written").Inc()
}

// DocumentSkipped counts a document left out of an archive
func (m *Metrics) DocumentSkipped() {
	if m == nil {
		return
	}
	m.documents.WithLabelValues("skipped").Inc()
}

// ArchiveDone records a finished or aborted archive
func (m *Metrics) ArchiveDone(kind string, ok bool, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "aborted"
	}
	m.archives.WithLabelValues(kind, result).Inc()
	m.archiveBytes.Add(float64(bytes))
	m.archiveDuration.Observe(elapsed.Seconds())
}

// RosterFetched records an upstream roster fetch
func (m *Metrics) RosterFetched(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.rosterFetches.WithLabelValues("error").Inc()
		return
	}
	m.rosterFetches.WithLabelValues("ok").Inc()
}

// CacheResult records a roster cache lookup
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.rosterCache.WithLabelValues(result).Inc()
}
