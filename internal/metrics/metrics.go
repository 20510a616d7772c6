// Package metrics собирает метрики сервиса в формате Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "cloudstorage"

// Причины отклонения загрузки.
const (
	ReasonQuota    = "quota"
	ReasonFileType = "file_type"
	ReasonTooLarge = "too_large"
)

// Collector - prometheus.Collector с метриками хранилища и HTTP.
// Методы безопасно вызывать на nil.
type Collector struct {
	uploads         prometheus.Counter
	uploadedBytes   prometheus.Counter
	deletes         prometheus.Counter
	deletedBytes    prometheus.Counter
	rejectedUploads *prometheus.CounterVec
	orphanedBlobs   prometheus.Counter
	staleRows       prometheus.Counter
	reconciled      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCollector возвращает новый Collector.
func NewCollector() *Collector {
	return &Collector{
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Number of successfully stored files.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of successfully stored files.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deletes_total",
			Help:      "Number of deleted files.",
		}),
		deletedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deleted_bytes_total",
			Help:      "Bytes freed by deleted files.",
		}),
		rejectedUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_uploads_total",
			Help:      "Uploads rejected before anything was stored.",
		}, []string{"reason"}),
		orphanedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orphaned_blobs_total",
			Help:      "Blobs written without a committed metadata row.",
		}),
		staleRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_rows_total",
			Help:      "Metadata rows left pointing at a deleted blob.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconciled_total",
			Help:      "Inconsistencies repaired by the reconciliation sweep.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"method", "route"}),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.uploads.Describe(ch)
	c.uploadedBytes.Describe(ch)
	c.deletes.Describe(ch)
	c.deletedBytes.Describe(ch)
	c.rejectedUploads.Describe(ch)
	c.orphanedBlobs.Describe(ch)
	c.staleRows.Describe(ch)
	c.reconciled.Describe(ch)
	c.httpRequests.Describe(ch)
	c.httpDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.uploads.Collect(ch)
	c.uploadedBytes.Collect(ch)
	c.deletes.Collect(ch)
	c.deletedBytes.Collect(ch)
	c.rejectedUploads.Collect(ch)
	c.orphanedBlobs.Collect(ch)
	c.staleRows.Collect(ch)
	c.reconciled.Collect(ch)
	c.httpRequests.Collect(ch)
	c.httpDuration.Collect(ch)
}

// FileUploaded учитывает успешную загрузку.
func (c *Collector) FileUploaded(size int64) {
	if c == nil {
		return
	}
	c.uploads.Inc()
	c.uploadedBytes.Add(float64(size))
}

// FileDeleted учитывает успешное удаление.
func (c *Collector) FileDeleted(size int64) {
	if c == nil {
		return
	}
	c.deletes.Inc()
	c.deletedBytes.Add(float64(size))
}

func (c *Collector) UploadRejected(reason string) {
	if c == nil {
		return
	}
	c.rejectedUploads.WithLabelValues(reason).Inc()
}

func (c *Collector) OrphanedBlob() {
	if c == nil {
		return
	}
	c.orphanedBlobs.Inc()
}

func (c *Collector) StaleRow() {
	if c == nil {
		return
	}
	c.staleRows.Inc()
}

// Reconciled учитывает исправления сверки: kind = "orphan" или "stale".
func (c *Collector) Reconciled(kind string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.reconciled.WithLabelValues(kind).Add(float64(n))
}

// Middleware учитывает HTTP запросы по шаблону маршрута chi.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler возвращает обработчик /metrics для отдельного реестра с этим коллектором
// и стандартными метриками процесса и рантайма Go.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	if c != nil {
		reg.MustRegister(c)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
