package auth

import (
	"flatnas/services/accounts"

	"github.com/gofiber/fiber/v2"
)

// Resolver turns an Authorization header into an Identity.
type Resolver interface {
	ResolveIdentity(authorization string) accounts.Identity
}

type Config struct {
	// Next defines a function to skip middleware.
	//
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Resolver verifies the token and reads the active auth mode.
	//
	// Required. Default: nil
	Resolver Resolver

	// Header is the request header carrying the bearer token.
	//
	// Optional. Default: "Authorization"
	Header string
}

var ConfigDefault = Config{
	Next:     nil,
	Resolver: nil,
	Header:   fiber.HeaderAuthorization,
}

func configDefault(config ...Config) Config {
	if len(config) < 1 {
		return ConfigDefault
	}

	cfg := config[0]

	if cfg.Next == nil {
		cfg.Next = ConfigDefault.Next
	}
	if cfg.Header == "" {
		cfg.Header = ConfigDefault.Header
	}

	return cfg
}
