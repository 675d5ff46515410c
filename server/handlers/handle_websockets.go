package handlers

import (
	"context"
	"errors"

	"flatnas/pkg/logger"
	_websocket "flatnas/server/websocket"
	"flatnas/services/feeds"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Client requests answered over the socket.
const (
	EventRSSFetch     = "rss:fetch"
	EventRSSData      = "rss:data"
	EventRSSError     = "rss:error"
	EventWeatherFetch = "weather:fetch"
	EventWeatherData  = "weather:data"
	EventWeatherError = "weather:error"
	EventHotFetch     = "hot:fetch"
	EventHotData      = "hot:data"
	EventHotError     = "hot:error"
)

// HandleWebSocketUpgrade lets upgrade requests from allowed origins through.
// A "*" entry allows any origin.
func HandleWebSocketUpgrade(allowedOrigins []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if !isAllowedOrigin(c.Get(fiber.HeaderOrigin), allowedOrigins) {
			return fiber.ErrForbidden
		}
		c.Locals("allowed", true)
		return c.Next()
	}
}

func isAllowedOrigin(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket hands the upgraded connection to the hub.
func HandleWebSocket(hub *_websocket.Manager) fiber.Handler {
	return websocket.New(hub.Serve)
}

type rssFetchRequest struct {
	URL string `json:"url"`
}

type weatherFetchRequest struct {
	City string `json:"city"`
}

type hotFetchRequest struct {
	Type  string `json:"type"`
	Force bool   `json:"force"`
}

// RegisterRealtime wires the feed requests a dashboard can make over the
// socket. Replies go to the requesting client only.
func RegisterRealtime(hub *_websocket.Manager, svc *feeds.Service) {
	hub.Handle(EventRSSFetch, func(ctx context.Context, data json.RawMessage) *_websocket.Frame {
		var req rssFetchRequest
		_ = json.Unmarshal(data, &req)
		if req.URL == "" {
			return errorFrame(EventRSSError, "url", req.URL, errors.New("URL required"))
		}

		feed, err := svc.ParseRSS(ctx, req.URL)
		if err != nil {
			logger.WithField("url", req.URL).WithError(err).Warn("RSS socket request failed")
			return errorFrame(EventRSSError, "url", req.URL, err)
		}
		return &_websocket.Frame{Event: EventRSSData, Data: fiber.Map{"url": req.URL, "data": feed}}
	})

	hub.Handle(EventWeatherFetch, func(ctx context.Context, data json.RawMessage) *_websocket.Frame {
		var req weatherFetchRequest
		_ = json.Unmarshal(data, &req)

		report, err := svc.Weather(ctx, req.City)
		if err != nil {
			logger.WithField("city", req.City).WithError(err).Warn("weather socket request failed")
			return errorFrame(EventWeatherError, "city", req.City, err)
		}
		return &_websocket.Frame{Event: EventWeatherData, Data: fiber.Map{"city": req.City, "data": report}}
	})

	hub.Handle(EventHotFetch, func(ctx context.Context, data json.RawMessage) *_websocket.Frame {
		var req hotFetchRequest
		_ = json.Unmarshal(data, &req)

		items, err := svc.Hot(ctx, req.Type, req.Force)
		if err != nil {
			logger.WithField("type", req.Type).WithError(err).Warn("hot socket request failed")
			return errorFrame(EventHotError, "type", req.Type, err)
		}
		return &_websocket.Frame{Event: EventHotData, Data: fiber.Map{"type": req.Type, "data": items}}
	})
}

func errorFrame(event, key, value string, err error) *_websocket.Frame {
	return &_websocket.Frame{Event: event, Data: fiber.Map{key: value, "error": err.Error()}}
}
