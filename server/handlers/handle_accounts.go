package handlers

import (
	"flatnas/server/middleware/limiter"
	"flatnas/services/accounts"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin exchanges credentials for a session token. An empty username
// logs in as admin.
func HandleLogin(svc *accounts.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := bindJSON(c, &req, "Missing fields"); err != nil {
			return err
		}

		result, err := svc.Login(limiter.ClientIP(c), req.Username, req.Password)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"token":    result.Token,
			"username": result.Username,
		})
	}
}

// HandleRegister creates an account. The mode check comes before field
// validation so single-user servers always answer 403.
func HandleRegister(svc *accounts.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := bindJSON(c, &req, "Missing fields"); err != nil {
			return err
		}

		if err := svc.Register(req.Username, req.Password); err != nil {
			return err
		}
		return success(c)
	}
}
