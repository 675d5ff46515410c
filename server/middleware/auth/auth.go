package auth

import (
	"flatnas/services/accounts"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalsIdentity = "identity"
	LocalsUsername = "username"
)

// New resolves the caller's Identity for every request and stores it in
// Locals. It never rejects a request; Require and RequireAdmin do that per route.
func New(config Config) fiber.Handler {
	cfg := configDefault(config)
	if cfg.Resolver == nil {
		panic("auth: Config.Resolver is required")
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		id := cfg.Resolver.ResolveIdentity(c.Get(cfg.Header))
		c.Locals(LocalsIdentity, id)
		if id.Authenticated {
			c.Locals(LocalsUsername, id.Username)
		}
		return c.Next()
	}
}

// FromContext returns the Identity stored by New, or an anonymous one.
func FromContext(c *fiber.Ctx) accounts.Identity {
	if id, ok := c.Locals(LocalsIdentity).(accounts.Identity); ok {
		return id
	}
	return accounts.Identity{}
}

// Require rejects requests without a valid token.
func Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, appErr := FromContext(c).RequireUser(); appErr != nil {
			return appErr
		}
		return c.Next()
	}
}

// RequireAdmin rejects everyone but the signed-in admin with message.
func RequireAdmin(message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, appErr := FromContext(c).RequireAdmin(message); appErr != nil {
			return appErr
		}
		return c.Next()
	}
}
