package routes

import (
	"flatnas/config"
	"flatnas/db"
	"flatnas/server/websocket"
	"flatnas/services/accounts"
	"flatnas/services/dashboard"
	"flatnas/services/feeds"
	"flatnas/services/media"
	"flatnas/services/probe"
	"flatnas/services/visitors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Deps is everything the route tables hand to handlers.
type Deps struct {
	Config    *config.Config
	System    *db.SystemStore
	Users     *db.UserStore
	Accounts  *accounts.Service
	Dashboard *dashboard.Service
	Feeds     *feeds.Service
	Media     *media.Service
	Visitors  *visitors.Counter
	Pinger    *probe.Pinger
	Hub       *websocket.Manager
	Redis     *redis.Client // optional
}

// RegisterRoutes mounts the API, the operational endpoints and the frontend.
// The frontend goes last because it owns the catch-all route.
func RegisterRoutes(app *fiber.App, deps Deps) {
	NewAPIRoutes(deps).Register(app)
	NewPublicRoutes(deps).Register(app)
}
