package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	ObserveRequest(route, method string, status int, duration time.Duration)
	ObserveStoreOp(op string, duration time.Duration, err error)
	ObserveStoreConflict(key string)
	IncResolution(action, outcome string)
	IncJob(jobType, status string)
}

type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	storeOps        *prometheus.HistogramVec
	storeConflicts  *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	jobs            *prometheus.CounterVec
}

// New registers the collectors on reg. A disabled recorder discards
// everything.
func New(enabled bool, reg prometheus.Registerer) Recorder {
	if !enabled {
		return noopRecorder{}
	}
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kpi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		storeOps: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kpi_store_operation_duration_seconds",
			Help:    "Collection store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
		storeConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_store_version_conflicts_total",
			Help: "Optimistic version conflicts per collection",
		}, []string{"key"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_transmission_resolutions_total",
			Help: "Transmission resolutions by action and outcome",
		}, []string{"action", "outcome"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_jobs_total",
			Help: "Background jobs by type and status",
		}, []string{"type", "status"}),
	}
}

func (c *Collector) ObserveRequest(route, method string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(route, method, statusBucket(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) ObserveStoreOp(op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeOps.WithLabelValues(op, result).Observe(duration.Seconds())
}

// ObserveStoreConflict labels by collection family so per-user history keys
// do not explode cardinality.
func (c *Collector) ObserveStoreConflict(key string) {
	c.storeConflicts.WithLabelValues(keyFamily(key)).Inc()
}

func (c *Collector) IncResolution(action, outcome string) {
	c.resolutions.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) IncJob(jobType, status string) {
	c.jobs.WithLabelValues(jobType, status).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func keyFamily(key string) string {
	const history = "kpi.history."
	if len(key) > len(history) && key[:len(history)] == history {
		return "kpi.history"
	}
	return key
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type noopRecorder struct{}

func (noopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (noopRecorder) ObserveStoreOp(string, time.Duration, error)       {}
func (noopRecorder) ObserveStoreConflict(string)                       {}
func (noopRecorder) IncResolution(string, string)                      {}
func (noopRecorder) IncJob(string, string)                             {}
