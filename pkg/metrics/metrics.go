package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// File store metrics
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_store_writes_total",
			Help: "Atomic file writes by outcome",
		},
		[]string{"outcome"}, // renamed, copied, failed
	)

	StoreWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatnas_store_write_duration_seconds",
			Help:    "Time spent writing a JSON document to disk",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	UserCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flatnas_user_cache_hits_total",
			Help: "User record reads served from memory",
		},
	)

	UserCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flatnas_user_cache_misses_total",
			Help: "User record reads that went to disk",
		},
	)

	// Dashboard metrics
	DashboardSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_dashboard_saves_total",
			Help: "Dashboard document mutations by kind",
		},
		[]string{"kind"}, // save, import, reset, bookmark
	)

	// Feed metrics
	FeedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_feed_fetches_total",
			Help: "Upstream feed fetches by source and outcome",
		},
		[]string{"source", "status"},
	)

	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatnas_feed_fetch_duration_seconds",
			Help:    "Upstream feed latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	HotCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_hot_cache_hits_total",
			Help: "Hot list requests served from cache",
		},
		[]string{"source"},
	)

	HotCacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_hot_cache_stale_total",
			Help: "Stale hot list entries served after an upstream failure",
		},
		[]string{"source"},
	)

	// Real-time metrics
	WebSocketClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flatnas_ws_clients_active",
			Help: "Current number of connected websocket clients",
		},
	)

	WebSocketConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flatnas_ws_connections_total",
			Help: "Total number of websocket connections established",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_ws_broadcasts_total",
			Help: "Events broadcast to all websocket clients",
		},
		[]string{"event"},
	)

	MessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flatnas_ws_messages_dropped_total",
			Help: "Outbound websocket frames dropped because a client buffer was full",
		},
	)

	// Uploads
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatnas_uploads_total",
			Help: "Uploaded files by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// Visitors
	VisitorsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flatnas_visitors_total",
			Help: "All-time visitor count",
		},
	)

	// Rate Limiting Metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_exceeded_total",
			Help: "Total number of rate limit violations",
		},
		[]string{"endpoint"},
	)

	// Redis Metrics
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation execution time",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"operation", "status"},
	)

	// Authentication Metrics
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"}, // success, failed, locked
	)

	LoginLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_lockouts_total",
			Help: "Number of times a client IP was locked out",
		},
	)

	RegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total number of user registrations",
		},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type", "code"},
	)

	// System Metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "start_time", "auth_mode"},
	)
)

// Store helpers
func RecordStoreWrite(outcome string, seconds float64) {
	StoreWritesTotal.WithLabelValues(outcome).Inc()
	StoreWriteDuration.Observe(seconds)
}

func IncrementUserCacheHits() {
	UserCacheHits.Inc()
}

func IncrementUserCacheMisses() {
	UserCacheMisses.Inc()
}

func RecordDashboardSave(kind string) {
	DashboardSavesTotal.WithLabelValues(kind).Inc()
}

// Feed helpers
func RecordFeedFetch(source string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	FeedFetchesTotal.WithLabelValues(source, status).Inc()
	FeedFetchDuration.WithLabelValues(source).Observe(seconds)
}

func IncrementHotCacheHits(source string) {
	HotCacheHits.WithLabelValues(source).Inc()
}

func IncrementHotCacheStale(source string) {
	HotCacheStaleServed.WithLabelValues(source).Inc()
}

// WebSocket helpers
func IncrementWebSocketClients() {
	WebSocketClientsActive.Inc()
	WebSocketConnectionsTotal.Inc()
}

func DecrementWebSocketClients() {
	WebSocketClientsActive.Dec()
}

func RecordBroadcast(event string) {
	BroadcastsTotal.WithLabelValues(event).Inc()
}

func IncrementMessagesDropped() {
	MessagesDropped.Inc()
}

func RecordUpload(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	UploadsTotal.WithLabelValues(kind, status).Inc()
}

func SetVisitorsTotal(total int64) {
	VisitorsTotal.Set(float64(total))
}

// Redis Helpers
func RecordRedisOperation(operation string, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	RedisOperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// Rate Limiting Helpers
func IncrementRateLimitExceeded(endpoint string) {
	RateLimitExceeded.WithLabelValues(endpoint).Inc()
}

// Auth Helpers
func RecordLoginAttempt(status string) {
	LoginAttemptsTotal.WithLabelValues(status).Inc()
}

func IncrementLoginLockouts() {
	LoginLockoutsTotal.Inc()
}

func IncrementRegistrations() {
	RegistrationsTotal.Inc()
}

// Error Helpers
func RecordError(errorType, errorCode string) {
	ErrorsTotal.WithLabelValues(errorType, errorCode).Inc()
}
