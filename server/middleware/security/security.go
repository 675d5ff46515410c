package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	// Next defines a function to skip middleware.
	//
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// ScriptSources for the CSP script-src directive
	ScriptSources []string

	// StyleSources for the CSP style-src directive
	StyleSources []string

	// FrameSources for the CSP frame-src directive. Dashboard widgets embed
	// arbitrary pages, so this is wide open by default.
	FrameSources []string

	// FrameOptions is the X-Frame-Options value.
	//
	// Optional. Default: "SAMEORIGIN"
	FrameOptions string

	// HSTS enables Strict-Transport-Security. Only useful behind TLS.
	HSTS bool
}

var DefaultConfig = Config{
	ScriptSources: []string{"'self'", "'unsafe-inline'"},
	StyleSources:  []string{"'self'", "'unsafe-inline'", "https:"},
	FrameSources:  []string{"*"},
	FrameOptions:  "SAMEORIGIN",
}

// configDefault merges provided config with defaults
func configDefault(config ...Config) Config {
	if len(config) < 1 {
		return DefaultConfig
	}

	cfg := config[0]

	if len(cfg.ScriptSources) == 0 {
		cfg.ScriptSources = DefaultConfig.ScriptSources
	}
	if len(cfg.StyleSources) == 0 {
		cfg.StyleSources = DefaultConfig.StyleSources
	}
	if len(cfg.FrameSources) == 0 {
		cfg.FrameSources = DefaultConfig.FrameSources
	}
	if cfg.FrameOptions == "" {
		cfg.FrameOptions = DefaultConfig.FrameOptions
	}

	return cfg
}

// New creates the security headers middleware
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)
	csp := buildCSP(cfg)

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		c.Set("Content-Security-Policy", csp)
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", cfg.FrameOptions)
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if cfg.HSTS {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

func buildCSP(cfg Config) string {
	directives := []string{
		"default-src 'self'",
		"script-src " + strings.Join(cfg.ScriptSources, " "),
		"style-src " + strings.Join(cfg.StyleSources, " "),
		"font-src 'self' https: data:",
		// Bookmark icons and backgrounds come from anywhere.
		"img-src 'self' data: blob: http: https:",
		"media-src 'self' blob: http: https:",
		"connect-src 'self' ws: wss: http: https:",
		"frame-src " + strings.Join(cfg.FrameSources, " "),
		"frame-ancestors 'self'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return strings.Join(directives, "; ") + ";"
}
