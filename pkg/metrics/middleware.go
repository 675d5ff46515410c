package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HTTPMetricsMiddleware tracks HTTP request metrics
func HTTPMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Increment in-flight requests
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		// Process request. Errors are rendered here so the recorded status
		// is the one the client sees.
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		// Calculate duration
		duration := time.Since(start).Seconds()

		// Get status code
		status := c.Response().StatusCode()
		statusStr := strconv.Itoa(status)

		// Get method and path
		method := c.Method()
		path := sanitizePath(c.Path())

		// Record metrics
		HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()

		return nil
	}
}

// sanitizePath removes dynamic segments to avoid high cardinality
// Example: /music/song.mp3 -> /music/:file
func sanitizePath(path string) string {
	prefixes := []struct{ prefix, normalized string }{
		{"/music/", "/music/:file"},
		{"/backgrounds/", "/backgrounds/:file"},
		{"/mobile_backgrounds/", "/mobile_backgrounds/:file"},
		{"/icons/", "/icons/:file"},
		{"/assets/", "/assets/:file"},
		{"/api/backgrounds/", "/api/backgrounds/:name"},
		{"/api/mobile_backgrounds/", "/api/mobile_backgrounds/:name"},
	}

	for _, p := range prefixes {
		if strings.HasPrefix(path, p.prefix) && len(path) > len(p.prefix) {
			return p.normalized
		}
	}

	if strings.HasPrefix(path, "/api/") {
		return path
	}

	switch path {
	case "/", "/ws", "/metrics", "/healthz", "/readyz":
		return path
	default:
		return "/other"
	}
}
