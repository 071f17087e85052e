// Package metrics exposes Prometheus series for the backup engine:
// upload/restore throughput, dedup ratio, provider errors, and buffer
// pool pressure.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

var defaultRegistry = prometheus.DefaultRegisterer

// Metrics holds every series the run engine and HTTP status server emit.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	bytesUploaded     *prometheus.CounterVec
	chunksSeen        *prometheus.CounterVec
	chunksDeduped     *prometheus.CounterVec
	providerOpsTotal  *prometheus.CounterVec
	providerErrors    *prometheus.CounterVec
	bufferPoolHits    *prometheus.CounterVec
	bufferPoolMisses  *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	goroutines        prometheus.Gauge
	memoryAllocBytes  prometheus.Gauge
}

// NewMetrics registers every series against the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetricsWithRegistry(defaultRegistry)
}

// NewMetricsWithRegistry registers against reg, used by tests to avoid
// colliding with the process-global default registerer.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWithRegistry(reg)
}

func newMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_runs_total",
			Help: "Total number of completed backup runs by status",
		}, []string{"job", "status"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kip_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"job"}),
		bytesUploaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_bytes_uploaded_total",
			Help: "Total bytes written to the provider after compression and encryption",
		}, []string{"job"}),
		chunksSeen: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_chunks_seen_total",
			Help: "Total chunks produced by the chunker",
		}, []string{"job"}),
		chunksDeduped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_chunks_deduped_total",
			Help: "Chunks skipped because they already existed in the job index or provider",
		}, []string{"job"}),
		providerOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_provider_operations_total",
			Help: "Total provider operations by kind",
		}, []string{"provider", "operation"}),
		providerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_provider_errors_total",
			Help: "Total provider operation errors by kind",
		}, []string{"provider", "operation"}),
		bufferPoolHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_buffer_pool_hits_total",
			Help: "Buffer pool reuse hits by size class",
		}, []string{"size_class"}),
		bufferPoolMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_buffer_pool_misses_total",
			Help: "Buffer pool allocations that required a fresh buffer",
		}, []string{"size_class"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kip_http_requests_total",
			Help: "Total HTTP requests served by the status server",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kip_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		goroutines: f.NewGauge(prometheus.GaugeOpts{
			Name: "kip_goroutines",
			Help: "Number of goroutines",
		}),
		memoryAllocBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "kip_memory_alloc_bytes",
			Help: "Bytes allocated and not yet freed",
		}),
	}
}

// RecordRun records a finished run's status and duration. When ctx
// carries a valid trace span, the duration observation is attached as
// an exemplar so a slow run can be traced back to that span.
func (m *Metrics) RecordRun(ctx context.Context, job, status string, d time.Duration) {
	m.runsTotal.WithLabelValues(job, status).Inc()

	labels := prometheus.Labels{"job": job}
	if exemplar := exemplarFromContext(ctx); exemplar != nil {
		if observer, ok := m.runDuration.With(labels).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(d.Seconds(), exemplar)
			return
		}
	}
	m.runDuration.WithLabelValues(job).Observe(d.Seconds())
}

// exemplarFromContext extracts the active trace ID from ctx, if any.
func exemplarFromContext(ctx context.Context) prometheus.Labels {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}

func (m *Metrics) RecordBytesUploaded(job string, n int64) {
	m.bytesUploaded.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) RecordChunkSeen(job string)    { m.chunksSeen.WithLabelValues(job).Inc() }
func (m *Metrics) RecordChunkDeduped(job string) { m.chunksDeduped.WithLabelValues(job).Inc() }

func (m *Metrics) RecordProviderOp(provider, op string) {
	m.providerOpsTotal.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) RecordProviderError(provider, op string) {
	m.providerErrors.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) RecordBufferPoolHit(sizeClass string)  { m.bufferPoolHits.WithLabelValues(sizeClass).Inc() }
func (m *Metrics) RecordBufferPoolMiss(sizeClass string) { m.bufferPoolMisses.WithLabelValues(sizeClass).Inc() }

func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	statusText := http.StatusText(status)
	m.httpRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	m.httpDuration.WithLabelValues(method, path, statusText).Observe(d.Seconds())
}

func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
}

// StartSystemMetricsCollector runs UpdateSystemMetrics every 15s until
// the process exits.
func (m *Metrics) StartSystemMetricsCollector() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			m.UpdateSystemMetrics()
		}
	}()
}

// Handler serves the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
