package metrics

import (
	"satriarisk/backend/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestCounter counts HTTP requests by method, path template and status.
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP request latencies.
	HTTPRequestDuration *prometheus.HistogramVec

	// WorkflowTransitionCounter counts document state transitions, labelled by
	// entity (worksheet, assessment, mitigation, context) and action.
	WorkflowTransitionCounter *prometheus.CounterVec

	// AppInfo exposes build information as a constant gauge.
	AppInfo *prometheus.GaugeVec
)

func init() {
	HTTPRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satriarisk_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satriarisk_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WorkflowTransitionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satriarisk_workflow_transitions_total",
			Help: "Total number of successful workflow state transitions.",
		},
		[]string{"entity", "action"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satriarisk_app_info",
			Help: "Information about the SatriaRisk application.",
		},
		[]string{"version"},
	)
	AppInfo.With(prometheus.Labels{"version": config.Cfg.AppVersion}).Set(1)
}
