package routes

import (
	"os"
	"path/filepath"

	"flatnas/apperrors"
	"flatnas/server/handlers"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PublicRoutes handles everything outside /api: operational endpoints, the
// realtime socket, media files and the frontend.
type PublicRoutes struct {
	deps Deps
}

// NewPublicRoutes creates a new public routes handler
func NewPublicRoutes(deps Deps) *PublicRoutes {
	return &PublicRoutes{deps: deps}
}

// Register sets up all public routes
func (pr *PublicRoutes) Register(app *fiber.App) {
	cfg := pr.deps.Config

	health := handlers.NewHealthCheckHandler(
		cfg.Storage.DataDir,
		pr.deps.Users,
		pr.deps.Redis,
		pr.deps.Feeds.BreakerStates,
		pr.deps.Hub.ClientCount,
	)
	app.Get("/healthz", health.HandleHealthCheck())
	app.Get("/readyz", health.HandleReadinessCheck())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Plain WebSocket carrying JSON {event, data} frames, not Socket.IO: the
	// dashboard frontend needs a matching client (see websocket.Frame).
	app.Get("/ws",
		handlers.HandleWebSocketUpgrade(cfg.Server.AllowedOrigins),
		handlers.HandleWebSocket(pr.deps.Hub))

	media := fiber.Static{Compress: false, ByteRange: true, Browse: false}
	app.Static("/music", cfg.Storage.MusicDir, media)
	app.Static("/backgrounds", cfg.Storage.BackgroundsDir, media)
	app.Static("/mobile_backgrounds", cfg.Storage.MobileBackgroundsDir, media)
	app.Static("/icons", cfg.Storage.IconsDir, media)

	pr.registerFrontend(app)
}

// registerFrontend serves the built dashboard with an index.html fallback for
// client-side routes. Without a build, / shows a landing page.
func (pr *PublicRoutes) registerFrontend(app *fiber.App) {
	dist := pr.deps.Config.Server.DistDir
	index := filepath.Join(dist, "index.html")

	if _, err := os.Stat(index); err != nil {
		app.Get("/", func(c *fiber.Ctx) error {
			return c.Render("index", fiber.Map{
				"Title":   "FlatNas",
				"Version": handlers.Version,
			})
		})
		return
	}

	app.Static("/", dist, fiber.Static{
		Compress:      true,
		Index:         "index.html",
		CacheDuration: 86400,
	})
	app.Get("/*", func(c *fiber.Ctx) error {
		if apperrors.IsAPIPath(c.Path()) {
			return c.Next()
		}
		return c.SendFile(index)
	})
}
