package handlers

import (
	"errors"

	"flatnas/apperrors"
	"flatnas/db"
	"flatnas/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type systemConfigRequest struct {
	AuthMode string `json:"authMode" validate:"required,oneof=single multi"`
}

// HandleGetSystemConfig returns the process-wide settings. It is public so the
// login screen knows whether to offer registration.
func HandleGetSystemConfig(system *db.SystemStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(system.Config())
	}
}

// HandleUpdateSystemConfig switches the auth mode. Mount behind
// auth.RequireAdmin.
func HandleUpdateSystemConfig(system *db.SystemStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req systemConfigRequest
		if err := bindJSON(c, &req, "Invalid config"); err != nil {
			return apperrors.NewInvalidSystemConfig()
		}

		cfg, err := system.SetAuthMode(db.AuthMode(req.AuthMode))
		if err != nil {
			if errors.Is(err, db.ErrInvalidAuthMode) {
				return apperrors.NewInvalidSystemConfig()
			}
			return apperrors.NewStorageError("save_system_config", "system.json", err)
		}

		logger.WithField("auth_mode", req.AuthMode).Info("auth mode changed")
		return c.JSON(fiber.Map{"success": true, "systemConfig": cfg})
	}
}
