package handlers

import (
	"context"
	"os"
	"time"

	"flatnas/db"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// HealthCheckHandler provides health and readiness checks
type HealthCheckHandler struct {
	dataDir  string
	users    *db.UserStore
	rdb      *redis.Client
	breakers func() map[string]string
	clients  func() int
}

// NewHealthCheckHandler creates a new health check handler. rdb may be nil.
func NewHealthCheckHandler(dataDir string, users *db.UserStore, rdb *redis.Client, breakers func() map[string]string, clients func() int) *HealthCheckHandler {
	return &HealthCheckHandler{
		dataDir:  dataDir,
		users:    users,
		rdb:      rdb,
		breakers: breakers,
		clients:  clients,
	}
}

// HealthCheckResponse represents the health status
type HealthCheckResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    float64                `json:"uptime_seconds"`
	Checks    map[string]CheckStatus `json:"checks"`
	Metrics   map[string]any         `json:"metrics,omitempty"`
}

// CheckStatus represents individual component status
type CheckStatus struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Latency     float64 `json:"latency_ms,omitempty"`
	LastChecked string  `json:"last_checked"`
}

const Version = "1.0.0"

var startTime = time.Now()

func newResponse(status string) HealthCheckResponse {
	return HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
		Uptime:    time.Since(startTime).Seconds(),
		Checks:    make(map[string]CheckStatus),
	}
}

// HandleHealthCheck performs a basic liveness check
func (h *HealthCheckHandler) HandleHealthCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		response := newResponse("healthy")
		response.Checks["server"] = CheckStatus{
			Status:      "up",
			Message:     "Server is running",
			LastChecked: time.Now().Format(time.RFC3339),
		}
		return c.JSON(response)
	}
}

// HandleReadinessCheck verifies the data directory and the admin record, and
// Redis when one is configured.
func (h *HealthCheckHandler) HandleReadinessCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		response := newResponse("ready")
		overallHealthy := true

		checks := map[string]CheckStatus{
			"data_dir": h.checkDataDir(),
			"admin":    h.checkAdmin(),
		}
		if h.rdb != nil {
			checks["redis"] = h.checkRedis(ctx)
		}
		for name, status := range checks {
			response.Checks[name] = status
			if status.Status == "unhealthy" {
				overallHealthy = false
			}
		}

		response.Metrics = map[string]any{}
		if h.breakers != nil {
			states := h.breakers()
			response.Metrics["breakers"] = states
			for _, state := range states {
				if state == gobreaker.StateOpen.String() {
					response.Status = "degraded"
				}
			}
		}
		if h.clients != nil {
			response.Metrics["websocket_clients"] = h.clients()
		}

		if !overallHealthy {
			response.Status = "unavailable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(response)
		}
		return c.JSON(response)
	}
}

func (h *HealthCheckHandler) checkDataDir() CheckStatus {
	start := time.Now()
	f, err := os.CreateTemp(h.dataDir, ".readyz-*")
	if err == nil {
		name := f.Name()
		f.Close()
		err = os.Remove(name)
	}
	return statusFrom(err, "Data directory is writable", start)
}

func (h *HealthCheckHandler) checkAdmin() CheckStatus {
	start := time.Now()
	_, err := h.users.Load(db.AdminUsername)
	return statusFrom(err, "Admin record loads", start)
}

// checkRedis verifies Redis connectivity and latency
func (h *HealthCheckHandler) checkRedis(ctx context.Context) CheckStatus {
	start := time.Now()
	status := statusFrom(h.rdb.Ping(ctx).Err(), "Redis is responding", start)
	if status.Status == "healthy" && status.Latency > 100 {
		status.Status = "degraded"
		status.Message = "Redis latency is high"
	}
	return status
}

func statusFrom(err error, okMessage string, start time.Time) CheckStatus {
	status := CheckStatus{
		Status:      "healthy",
		Message:     okMessage,
		Latency:     float64(time.Since(start).Milliseconds()),
		LastChecked: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		status.Status = "unhealthy"
		status.Message = err.Error()
	}
	return status
}
