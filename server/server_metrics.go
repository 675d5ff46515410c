package server

import (
	"runtime"
	"strconv"
	"time"

	"flatnas/apperrors"
	"flatnas/db"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
	"flatnas/server/handlers"

	"github.com/gofiber/fiber/v2"
)

// errorHandlerConfig logs every AppError at a level matching its status and
// counts it.
func errorHandlerConfig(showInternal bool) apperrors.HandlerConfig {
	return apperrors.HandlerConfig{
		ShowInternalErrors: showInternal,
		OnError: func(c *fiber.Ctx, err *apperrors.AppError) {
			logger.LogAppErrorWithContext(err, logger.LevelForStatus(err.StatusCode), map[string]interface{}{
				"method":     c.Method(),
				"path":       c.Path(),
				"request_id": c.Locals("requestid"),
			})
			metrics.RecordError(string(err.Code), strconv.Itoa(err.StatusCode))
		},
	}
}

func setupMetrics(app *fiber.App, mode db.AuthMode) {
	metrics.SystemInfo.WithLabelValues(
		handlers.Version,
		runtime.Version(),
		time.Now().Format(time.RFC3339),
		string(mode),
	).Set(1)

	app.Use(metrics.HTTPMetricsMiddleware())
}
