// Package metrics defines the Prometheus collectors exported on /metrics
// and the gin middleware that feeds the HTTP ones.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "click_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "click_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// Autosave
	AutosavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_autosaves_total",
			Help: "Total number of autosave requests by result",
		},
		[]string{"result"}, // "created", "saved", "unchanged", "rejected"
	)

	AutosaveBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "click_autosave_state_bytes",
			Help:    "Size of editor states received by autosave",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1 KiB .. 16 MiB
		},
	)

	// Uploads
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_uploads_total",
			Help: "Total number of uploads by final status",
		},
		[]string{"status"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_upload_bytes_total",
			Help: "Total bytes stored by completed uploads",
		},
	)

	// Publishing
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_publish_total",
			Help: "Total number of publish attempts by platform and outcome",
		},
		[]string{"platform", "outcome"}, // "posted", "failed", "circuit_open"
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "click_publish_duration_seconds",
			Help:    "Time to publish one post including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"platform"},
	)

	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_scheduler_runs_total",
			Help: "Total number of scheduler runs by result",
		},
		[]string{"result"},
	)

	// Audio
	AudioMasterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "click_audio_master_duration_seconds",
			Help:    "Duration of ffmpeg mastering runs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"result"},
	)

	// Alerts
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_alerts_total",
			Help: "Total number of alerts by outcome",
		},
		[]string{"outcome"}, // "sent", "cooldown", "rate_limited", "failed"
	)

	// Client logs
	ClientLogEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_client_log_entries_total",
			Help: "Total number of client log entries received by level",
		},
		[]string{"level"},
	)
)

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAutosave records an autosave outcome and the size of its payload.
func RecordAutosave(result string, stateBytes int) {
	AutosavesTotal.WithLabelValues(result).Inc()
	if stateBytes > 0 {
		AutosaveBytes.Observe(float64(stateBytes))
	}
}

// RecordUpload records the final status of an upload.
func RecordUpload(status string, bytes int64) {
	UploadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		UploadBytes.Add(float64(bytes))
	}
}

// RecordPublish records one publish outcome for a platform.
func RecordPublish(platform, outcome string, duration time.Duration) {
	PublishTotal.WithLabelValues(platform, outcome).Inc()
	PublishDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordSchedulerRun records the result of one scheduler pass.
func RecordSchedulerRun(err error) {
	if err != nil {
		SchedulerRuns.WithLabelValues("error").Inc()
		return
	}
	SchedulerRuns.WithLabelValues("ok").Inc()
}

// RecordAudioMaster records one ffmpeg run.
func RecordAudioMaster(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	AudioMasterDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordAlert records what happened to an alert.
func RecordAlert(outcome string) {
	AlertsTotal.WithLabelValues(outcome).Inc()
}

// RecordClientLog counts one client log entry.
func RecordClientLog(level string) {
	ClientLogEntries.WithLabelValues(level).Inc()
}

// Middleware records request count, latency and in-flight requests. The
// route label is the matched gin route pattern so IDs do not explode
// cardinality; unmatched requests are labelled "unmatched".
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		HTTPActiveRequests.Inc()
		defer HTTPActiveRequests.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
