package handlers

import (
	"errors"
	"strings"

	"flatnas/apperrors"
	"flatnas/pkg/logger"
	"flatnas/server/middleware/limiter"
	"flatnas/services/feeds"

	"github.com/gofiber/fiber/v2"
)

// HandleHot returns a trending list. Upstream failures answer 200 with
// whatever is cached, possibly nothing.
func HandleHot(svc *feeds.Service, source string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.Hot(c.UserContext(), source, queryFlag(c, "force"))
		if err != nil {
			logger.WithField("source", source).WithError(err).Warn("hot list unavailable, serving cache")
		}
		return c.JSON(items)
	}
}

func HandleParseRSS(svc *feeds.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawURL := strings.TrimSpace(c.Query("url"))
		if rawURL == "" {
			return apperrors.NewBadRequest("URL is required")
		}

		feed, err := svc.ParseRSS(c.UserContext(), rawURL)
		if err != nil {
			if errors.Is(err, feeds.ErrInvalidURL) {
				return apperrors.NewBadRequest("Invalid URL")
			}
			return apperrors.NewUpstreamError("rss", "Failed to parse RSS feed", err)
		}
		return c.JSON(feed)
	}
}

func HandleWeather(svc *feeds.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		city := strings.TrimSpace(c.Query("city"))
		if city == "" {
			return apperrors.NewBadRequest("City is required")
		}

		report, err := svc.Weather(c.UserContext(), city)
		if err != nil {
			return apperrors.NewUpstreamError("weather", "Failed to fetch weather data", err)
		}
		return c.JSON(fiber.Map{"success": true, "data": report})
	}
}

// HandleIP reports the server's public address as seen by the geolocation
// sources. It never fails.
func HandleIP(svc *feeds.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.LookupIP(c.UserContext(), limiter.ClientIP(c)))
	}
}

func HandleFetchMeta(svc *feeds.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawURL := strings.TrimSpace(c.Query("url"))
		if rawURL == "" {
			return apperrors.NewBadRequest("URL is required")
		}

		meta, err := svc.FetchMeta(c.UserContext(), rawURL)
		if err != nil {
			return apperrors.NewBadRequest("Invalid URL")
		}
		return c.JSON(meta)
	}
}
