// Package metrics provides Prometheus metrics for monitoring the synchronization layer.
package metrics

import (
	"time"

	"github.com/nadmax/vigil/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_poll_ticks_total",
			Help: "Total number of polling ticks executed per component",
		},
		[]string{"component"},
	)
	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_poll_errors_total",
			Help: "Total number of polling failures by component and class",
		},
		[]string{"component", "class"},
	)
	StaleResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_stale_responses_total",
			Help: "Total number of out-of-order poll responses discarded",
		},
	)
	TasksTracked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_tasks_tracked",
			Help: "Current number of tracked tasks by status",
		},
		[]string{"status"},
	)
	TaskPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_task_poll_duration_seconds",
			Help:    "Task status request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	AlertsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_fetched_total",
			Help: "Total number of alert records fetched from the feed",
		},
	)
	AlertsNew = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_new_total",
			Help: "Total number of alerts classified as new by severity",
		},
		[]string{"severity"},
	)
	FeedDiscontinuities = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_feed_discontinuities_total",
			Help: "Total number of feed fetches whose maximum id regressed below the watermark",
		},
	)
	NotificationsEscalated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_notifications_escalated_total",
			Help: "Total number of alerts escalated into notifications by severity",
		},
		[]string{"severity"},
	)
	NotificationsAbsorbed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_notifications_absorbed_total",
			Help: "Total number of alerts absorbed silently below the escalation threshold",
		},
	)
	UnreadCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_unread_count",
			Help: "Last unread badge count reported by the summary endpoint",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "Total number of HTTP requests served by the ops endpoints",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "Ops HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordPollTick(component string) {
	PollTicks.WithLabelValues(component).Inc()
}

func RecordPollError(component, class string) {
	PollErrors.WithLabelValues(component, class).Inc()
}

func RecordStaleResponse() {
	StaleResponses.Inc()
}

func RecordTaskPoll(duration time.Duration) {
	TaskPollDuration.Observe(duration.Seconds())
}

func UpdateTaskGauges(counts map[task.Status]int) {
	TasksTracked.Reset()
	for status, count := range counts {
		TasksTracked.WithLabelValues(string(status)).Set(float64(count))
	}
}

func RecordAlertsFetched(count int) {
	AlertsFetched.Add(float64(count))
}

func RecordNewAlert(severity int) {
	AlertsNew.WithLabelValues(severityLabel(severity)).Inc()
}

func RecordFeedDiscontinuity() {
	FeedDiscontinuities.Inc()
}

func RecordNotificationEscalated(severity int) {
	NotificationsEscalated.WithLabelValues(severityLabel(severity)).Inc()
}

func RecordNotificationAbsorbed() {
	NotificationsAbsorbed.Inc()
}

func UpdateUnreadCount(count int) {
	UnreadCount.Set(float64(count))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func severityLabel(severity int) string {
	switch severity {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	case 4:
		return "4"
	case 5:
		return "5"
	default:
		return "unknown"
	}
}
