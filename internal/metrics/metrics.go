// Package metrics provides Prometheus metrics for the share server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "share_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "share_bytes_uploaded_total",
			Help: "Total bytes written into the shared directory",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "share_bytes_downloaded_total",
			Help: "Total bytes served from the shared directory",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_uploads_total",
			Help: "Total number of stored uploads",
		},
		[]string{"status"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_downloads_total",
			Help: "Total number of downloads",
		},
		[]string{"status"},
	)

	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_deletes_total",
			Help: "Total number of delete requests",
		},
		[]string{"status"},
	)

	relocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_relocations_total",
			Help: "Total number of shared directory relocations",
		},
		[]string{"status"},
	)

	tunnelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "share_tunnel_state",
			Help: "Current tunnel state, 1 for the active state label",
		},
		[]string{"state"},
	)

	tunnelAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_tunnel_connect_attempts_total",
			Help: "Total tunnel connect attempts",
		},
		[]string{"provider", "result"},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "share_event_subscribers",
			Help: "Number of active event subscribers",
		},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_events_total",
			Help: "Total events published",
		},
		[]string{"type"},
	)
)

var tunnelStates = []string{"off", "connecting", "connected", "error"}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records one stored (or failed) upload.
func RecordUpload(bytes int64, success bool) {
	bytesUploaded.Add(float64(bytes))
	uploadsTotal.WithLabelValues(result(success)).Inc()
}

// RecordDownload records one served (or failed) download.
func RecordDownload(bytes int64, success bool) {
	bytesDownloaded.Add(float64(bytes))
	downloadsTotal.WithLabelValues(result(success)).Inc()
}

// RecordDelete records a delete request.
func RecordDelete(success bool) {
	deletesTotal.WithLabelValues(result(success)).Inc()
}

// RecordRelocation records a shared directory relocation.
func RecordRelocation(success bool) {
	relocationsTotal.WithLabelValues(result(success)).Inc()
}

// SetTunnelState marks state as the only active tunnel state.
func SetTunnelState(state string) {
	for _, s := range tunnelStates {
		v := 0.0
		if s == state {
			v = 1
		}
		tunnelState.WithLabelValues(s).Set(v)
	}
}

// RecordTunnelAttempt records the outcome of one connect attempt.
func RecordTunnelAttempt(provider string, success bool) {
	tunnelAttemptsTotal.WithLabelValues(provider, result(success)).Inc()
}

// SetEventSubscribers sets the number of active event subscribers.
func SetEventSubscribers(count int) {
	eventSubscribers.Set(float64(count))
}

// RecordEvent records an event publication.
func RecordEvent(eventType string) {
	eventsTotal.WithLabelValues(eventType).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Filter is a go-restful filter recording request metrics. Routes are
// labelled by their template so file names do not explode cardinality.
func Filter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	path := req.SelectedRoutePath()
	if path == "" {
		path = "unmatched"
	}
	status := resp.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}
	RecordHTTPRequest(req.Request.Method, path, status, time.Since(start))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics for plain handlers mounted outside the
// restful container, all under one fixed path label.
func Middleware(label string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, label, rw.statusCode, time.Since(start))
	})
}
