package apperrors

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HandlerConfig configures the error handler
type HandlerConfig struct {
	// ShowInternalErrors shows internal error details in responses (dev only)
	ShowInternalErrors bool

	// OnError is called for each error (logging, metrics)
	OnError func(c *fiber.Ctx, err *AppError)
}

// DefaultHandlerConfig returns sensible defaults
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ShowInternalErrors: false,
		OnError:            nil,
	}
}

// Handler creates a Fiber error handler
func Handler(config HandlerConfig) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := FromError(err)

		if config.OnError != nil {
			config.OnError(c, appErr)
		}

		if IsAPIPath(c.Path()) {
			return handleAPIError(c, appErr, config.ShowInternalErrors)
		}

		return handleBrowserError(c, appErr)
	}
}

// IsAPIPath reports whether the path belongs to the JSON API surface.
func IsAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/") || path == "/ws"
}

// handleAPIError returns JSON for API requests. The dashboard client reads
// the top-level "error" string.
func handleAPIError(c *fiber.Ctx, err *AppError, showInternal bool) error {
	response := fiber.Map{
		"error": err.Message,
		"code":  err.Code,
	}

	if len(err.Details) > 0 {
		response["details"] = err.Details
	}

	if showInternal && err.Internal != nil {
		response["internal"] = err.Internal.Error()
	}

	if retry, ok := err.Details["retry_after"]; ok {
		if seconds, ok := retry.(int); ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		}
	}

	return c.Status(err.StatusCode).JSON(response)
}

// handleBrowserError returns full HTML pages for browser requests
func handleBrowserError(c *fiber.Ctx, err *AppError) error {
	renderErr := c.Status(err.StatusCode).Render("error", fiber.Map{
		"Code":    err.Code,
		"Message": err.Message,
		"Status":  err.StatusCode,
	})

	// Fallback to plain text if render fails
	if renderErr != nil {
		return c.Status(err.StatusCode).SendString(err.Message)
	}

	return nil
}
