package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API client metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_api_requests_total",
			Help: "Total number of backend API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scenestudio_api_request_duration_seconds",
			Help:    "Backend API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Polling metrics
	PollTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_poll_ticks_total",
			Help: "Total number of polling re-fetches",
		},
		[]string{"target"},
	)

	PollersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenestudio_pollers_active",
			Help: "Number of running polling watches",
		},
	)

	StaleResponsesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_stale_responses_dropped_total",
			Help: "Responses discarded because a newer one was already applied",
		},
		[]string{"target"},
	)

	SceneTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_scene_transitions_total",
			Help: "Observed scene status transitions by destination status",
		},
		[]string{"status"},
	)

	// Session metrics
	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_session_events_total",
			Help: "Session lifecycle events",
		},
		[]string{"event", "result"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_notifications_total",
			Help: "Scene status notifications by sink and outcome",
		},
		[]string{"sink", "status"},
	)

	// Mock backend metrics
	MockAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_mockapi_requests_total",
			Help: "Requests served by the mock backend",
		},
		[]string{"method", "route", "status"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenestudio_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordAPIRequest records a backend API call
func RecordAPIRequest(method, endpoint, status string, duration float64) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordPollTick records one polling re-fetch
func RecordPollTick(target string) {
	PollTicksTotal.WithLabelValues(target).Inc()
}

// RecordStaleResponse records a discarded out-of-order response
func RecordStaleResponse(target string) {
	StaleResponsesDropped.WithLabelValues(target).Inc()
}

// RecordSceneTransition records a scene reaching a new status
func RecordSceneTransition(status string) {
	SceneTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordSessionEvent records a login, register or logout attempt
func RecordSessionEvent(event string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SessionEventsTotal.WithLabelValues(event, result).Inc()
}

// RecordNotification records a notification delivery attempt
func RecordNotification(sink string, err error) {
	status := "delivered"
	if err != nil {
		status = "failed"
	}
	NotificationsTotal.WithLabelValues(sink, status).Inc()
}

// RecordMockAPIRequest records a request served by the mock backend
func RecordMockAPIRequest(method, route, status string) {
	MockAPIRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
