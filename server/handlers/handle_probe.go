package handlers

import (
	"errors"

	"flatnas/apperrors"
	"flatnas/services/probe"
	"flatnas/services/visitors"

	"github.com/gofiber/fiber/v2"
)

func HandleTrackVisitor(counter *visitors.Counter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats := counter.Track()
		return c.JSON(fiber.Map{
			"success":       true,
			"totalVisitors": stats.Total,
			"todayVisitors": stats.Today,
		})
	}
}

// HandleDockerStatus relays the status file written by the update checker.
func HandleDockerStatus(path string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(probe.DockerStatus(path))
	}
}

func HandlePing(pinger *probe.Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := pinger.Ping(c.UserContext(), c.Query("target"))
		if err != nil {
			if errors.Is(err, probe.ErrInvalidTarget) {
				return apperrors.NewBadRequest("Invalid target")
			}
			return err
		}
		return c.JSON(result)
	}
}
