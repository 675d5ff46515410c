package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flatnas/apperrors"
	"flatnas/infrastructure/filestore"
	"flatnas/pkg/logger"
	"flatnas/server/handlers"
	"flatnas/server/middleware/auth"
	"flatnas/server/middleware/limiter"
	"flatnas/server/middleware/security"
	"flatnas/server/routes"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	App  *fiber.App
	deps routes.Deps
}

// NewServer builds the Fiber app with the full middleware stack and every
// route. deps must carry all services; Redis is optional.
func NewServer(deps routes.Deps) (*Server, error) {
	cfg := deps.Config

	engine, err := newViewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to load views: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "FlatNas",
		ServerHeader: "FlatNas",
		Views:        engine,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,

		// Only trusted proxies may speak for the client address.
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.Server.TrustedProxies,

		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: apperrors.Handler(errorHandlerConfig(os.Getenv("APP_ENV") == "development")),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	setupLogging(app)
	setupMetrics(app, deps.System.AuthMode())

	app.Use(cors.New())
	app.Use(security.New(security.Config{
		HSTS: os.Getenv("ENABLE_HSTS") == "true",
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics"
		},
	}))

	faviconFile := filepath.Join(cfg.Server.DistDir, "favicon.ico")
	if !filestore.Exists(faviconFile) {
		faviconFile = ""
	}
	app.Use(favicon.New(favicon.Config{File: faviconFile, URL: "/favicon.ico"}))

	limiterCfg := limiter.Config{
		Capacity:     cfg.RateLimit.Capacity,
		RefillRate:   cfg.RateLimit.RefillRate,
		RefillPeriod: cfg.RateLimit.RefillPeriod,
		Next: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/metrics", "/healthz", "/readyz":
				return true
			}
			return false
		},
	}
	if deps.Redis != nil {
		limiterCfg.Storage = limiter.NewRedisStorage(deps.Redis, 10*time.Minute)
	}
	app.Use(limiter.New(limiterCfg))

	app.Use(auth.New(auth.Config{Resolver: deps.Accounts}))

	handlers.RegisterRealtime(deps.Hub, deps.Feeds)
	routes.RegisterRoutes(app, deps)

	return &Server{App: app, deps: deps}, nil
}

func (s *Server) Start() error {
	addr := s.deps.Config.ServerAddress()
	logger.WithField("addr", addr).Info("Starting server")
	return s.App.Listen(addr)
}

// Shutdown stops accepting requests, disconnects realtime clients and waits
// for pending visitor writes.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down server...")
	s.deps.Hub.Close()
	err := s.App.ShutdownWithContext(ctx)
	s.deps.Visitors.Flush()
	return err
}
