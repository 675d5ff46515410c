package routes

import (
	"flatnas/server/handlers"
	"flatnas/server/middleware/auth"
	"flatnas/services/feeds"
	"flatnas/services/media"

	"github.com/gofiber/fiber/v2"
)

// APIRoutes handles the JSON API under /api
type APIRoutes struct {
	deps Deps
}

// NewAPIRoutes creates a new API routes handler
func NewAPIRoutes(deps Deps) *APIRoutes {
	return &APIRoutes{deps: deps}
}

// Register sets up all API routes
func (ar *APIRoutes) Register(app *fiber.App) {
	api := app.Group("/api")

	ar.registerAccountRoutes(api)
	ar.registerDashboardRoutes(api)
	ar.registerFeedRoutes(api)
	ar.registerMediaRoutes(api)
	ar.registerProbeRoutes(api)

	api.All("/*", func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

func (ar *APIRoutes) registerAccountRoutes(api fiber.Router) {
	api.Get("/system-config", handlers.HandleGetSystemConfig(ar.deps.System))
	api.Post("/system-config",
		auth.RequireAdmin("Only admin can change system config"),
		handlers.HandleUpdateSystemConfig(ar.deps.System))

	api.Post("/login", handlers.HandleLogin(ar.deps.Accounts))
	api.Post("/register", handlers.HandleRegister(ar.deps.Accounts))
}

func (ar *APIRoutes) registerDashboardRoutes(api fiber.Router) {
	h := handlers.NewDashboardHandler(ar.deps.Dashboard)

	api.Get("/data", h.HandleData())
	api.Post("/save", auth.Require(), h.HandleSave())
	api.Post("/data/import", auth.Require(), h.HandleImport())
	api.Post("/reset", auth.Require(), h.HandleReset())
	api.Post("/default/save",
		auth.RequireAdmin("Only admin can save default template"),
		h.HandleSaveDefault())
	api.Post("/add-bookmark", h.HandleAddBookmark())
}

func (ar *APIRoutes) registerFeedRoutes(api fiber.Router) {
	svc := ar.deps.Feeds

	api.Get("/hot/weibo", handlers.HandleHot(svc, feeds.SourceWeibo))
	api.Get("/hot/news", handlers.HandleHot(svc, feeds.SourceNews))
	api.Get("/rss/parse", handlers.HandleParseRSS(svc))
	api.Get("/weather", handlers.HandleWeather(svc))
	api.Get("/ip", handlers.HandleIP(svc))
	api.Get("/fetch-meta", handlers.HandleFetchMeta(svc))
}

func (ar *APIRoutes) registerMediaRoutes(api fiber.Router) {
	svc := ar.deps.Media

	api.Get("/backgrounds", handlers.HandleListMedia(svc, media.Backgrounds))
	api.Post("/backgrounds/upload", auth.Require(), handlers.HandleUploadMedia(svc, media.Backgrounds))
	api.Delete("/backgrounds/:filename", auth.Require(), handlers.HandleDeleteMedia(svc, media.Backgrounds))

	api.Get("/mobile_backgrounds", handlers.HandleListMedia(svc, media.MobileBackgrounds))
	api.Post("/mobile_backgrounds/upload", auth.Require(), handlers.HandleUploadMedia(svc, media.MobileBackgrounds))
	api.Delete("/mobile_backgrounds/:filename", auth.Require(), handlers.HandleDeleteMedia(svc, media.MobileBackgrounds))

	api.Get("/music-list", handlers.HandleListMedia(svc, media.Music))
	api.Post("/music/upload", auth.Require(), handlers.HandleUploadMedia(svc, media.Music))

	api.Get("/icons", handlers.HandleListMedia(svc, media.Icons))
}

func (ar *APIRoutes) registerProbeRoutes(api fiber.Router) {
	api.Post("/visitor/track", handlers.HandleTrackVisitor(ar.deps.Visitors))
	api.Get("/docker-status", handlers.HandleDockerStatus(ar.deps.Config.Storage.DockerStatusFile))
	api.Get("/ping", handlers.HandlePing(ar.deps.Pinger))
}
