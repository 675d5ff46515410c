package limiter

import (
	"strings"
	"time"

	"flatnas/apperrors"

	"github.com/gofiber/fiber/v2"
)

// Config defines the configuration for the rate limiter
type Config struct {
	// Next defines a function to skip middleware.
	//
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Max number of requests allowed
	//
	// Optional. Default: 300
	Capacity int64

	// Number of tokens to add per refill period
	//
	// Optional. Default: 30
	RefillRate int64

	// How often to refill tokens
	//
	// Optional. Default: 1 second
	RefillPeriod time.Duration

	// KeyGenerator allows you to generate custom keys for rate limiting
	//
	// Optional. Default: ClientIP
	KeyGenerator func(c *fiber.Ctx) string

	// Handler is called when rate limit is exceeded
	//
	// Optional. Default: returns a RATE_LIMITED AppError
	LimitReachedHandler fiber.Handler

	// Storage for buckets (can be in-memory, Redis, etc.)
	//
	// Optional. Default: InMemory
	Storage Storage
}

// ConfigDefault provides default configuration
var ConfigDefault = Config{
	Capacity:     300,
	RefillRate:   30,
	RefillPeriod: time.Second,
	KeyGenerator: ClientIP,
	LimitReachedHandler: func(c *fiber.Ctx) error {
		return apperrors.NewRateLimitError().WithDetails("retry_after", 1)
	},
}

// ClientIP is the address limits and lockouts are keyed on. Fiber only
// consults X-Forwarded-For when the app sets ProxyHeader and the peer is one
// of its TrustedProxies; otherwise this is the socket address.
func ClientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	return strings.TrimPrefix(strings.TrimSpace(ip), "::ffff:")
}

func configDefault(config ...Config) Config {
	if len(config) < 1 {
		cfg := ConfigDefault
		cfg.Storage = NewInMemoryStorage()
		return cfg
	}

	cfg := config[0]

	if cfg.Capacity <= 0 {
		cfg.Capacity = ConfigDefault.Capacity
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = ConfigDefault.RefillRate
	}
	if cfg.RefillPeriod <= 0 {
		cfg.RefillPeriod = ConfigDefault.RefillPeriod
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = ConfigDefault.KeyGenerator
	}
	if cfg.LimitReachedHandler == nil {
		cfg.LimitReachedHandler = ConfigDefault.LimitReachedHandler
	}
	if cfg.Storage == nil {
		cfg.Storage = NewInMemoryStorage()
	}

	return cfg
}
