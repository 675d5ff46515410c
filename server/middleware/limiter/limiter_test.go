package limiter

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"flatnas/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// behindProxy configures an app the way the server does. Test requests
// arrive from 0.0.0.0.
func behindProxy(trusted ...string) fiber.Config {
	return fiber.Config{
		ErrorHandler:            apperrors.Handler(apperrors.DefaultHandlerConfig()),
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          trusted,
	}
}

func newApp(cfg Config) *fiber.App {
	app := fiber.New(behindProxy("0.0.0.0"))
	app.Use(New(cfg))
	app.Get("/api/data", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func get(t *testing.T, app *fiber.App, path, forwardedFor string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if forwardedFor != "" {
		req.Header.Set(fiber.HeaderXForwardedFor, forwardedFor)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	if resp.StatusCode == fiber.StatusTooManyRequests {
		assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	}
	return resp.StatusCode
}

func TestLimiter_PerClientBuckets(t *testing.T) {
	app := newApp(Config{Capacity: 2, RefillRate: 1, RefillPeriod: time.Hour})

	assert.Equal(t, 200, get(t, app, "/api/data", "1.1.1.1"))
	assert.Equal(t, 200, get(t, app, "/api/data", "1.1.1.1, 10.0.0.1"))
	assert.Equal(t, 429, get(t, app, "/api/data", "1.1.1.1"))

	assert.Equal(t, 200, get(t, app, "/api/data", "2.2.2.2"), "other clients keep their own bucket")
}

func TestLimiter_Next(t *testing.T) {
	app := newApp(Config{
		Capacity:     1,
		RefillPeriod: time.Hour,
		Next:         func(c *fiber.Ctx) bool { return c.Path() == "/healthz" },
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(t, app, "/healthz", "3.3.3.3"))
	}
}

func TestTokenBucket_RefillKeepsRemainder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := &TokenBucket{Capacity: 10, Tokens: 0, RefillRate: 2, RefillPeriod: time.Second, LastRefill: start}

	tb.refill(start.Add(1500 * time.Millisecond))
	assert.Equal(t, int64(2), tb.Tokens)
	assert.Equal(t, start.Add(time.Second), tb.LastRefill)

	tb.refill(start.Add(2 * time.Second))
	assert.Equal(t, int64(4), tb.Tokens)

	tb.refill(start.Add(time.Minute))
	assert.Equal(t, int64(10), tb.Tokens, "capped at capacity")
}

func clientIPOf(t *testing.T, app *fiber.App, forwardedFor string) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, forwardedFor)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestClientIP(t *testing.T) {
	app := fiber.New(behindProxy("0.0.0.0"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ClientIP(c)) })

	tests := map[string]string{
		"203.0.113.9, 10.0.0.1": "203.0.113.9",
		"::ffff:192.0.2.1":      "192.0.2.1",
	}
	for header, want := range tests {
		assert.Equal(t, want, clientIPOf(t, app, header))
	}
}

func TestClientIP_UntrustedPeerCannotSpoof(t *testing.T) {
	app := fiber.New(behindProxy("10.0.0.1"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ClientIP(c)) })

	assert.Equal(t, "0.0.0.0", clientIPOf(t, app, "203.0.113.9"))
	assert.Equal(t, "0.0.0.0", clientIPOf(t, app, "198.51.100.4"))
}

func TestLimiter_RotatedHeaderSharesBucketWhenUntrusted(t *testing.T) {
	app := fiber.New(behindProxy())
	app.Use(New(Config{Capacity: 1, RefillRate: 1, RefillPeriod: time.Hour}))
	app.Get("/api/data", func(c *fiber.Ctx) error { return c.SendString("ok") })

	assert.Equal(t, 200, get(t, app, "/api/data", "1.1.1.1"))
	assert.Equal(t, 429, get(t, app, "/api/data", "2.2.2.2"))
}
