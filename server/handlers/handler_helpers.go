package handlers

import (
	"bytes"

	"flatnas/apperrors"
	"flatnas/server/middleware/auth"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// bindJSON decodes the request body into dst and runs its validate tags.
// Validation failures are reported with message. An empty body decodes as {}.
func bindJSON(c *fiber.Ctx, dst any, message string) error {
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return apperrors.NewBadRequest("Invalid JSON body").WithInternal(err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return apperrors.NewValidationError(message).WithInternal(err)
	}
	return nil
}

// isEmptyBody reports whether body is missing or an empty JSON object.
func isEmptyBody(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	return len(fields) == 0
}

// queryFlag reads boolean query switches such as ?force=1 or ?ping=true.
func queryFlag(c *fiber.Ctx, key string) bool {
	switch c.Query(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// currentUser returns the authenticated username. Routes mounting it sit
// behind auth.Require, so the error branch is only hit on misconfiguration.
func currentUser(c *fiber.Ctx) (string, error) {
	username, appErr := auth.FromContext(c).RequireUser()
	if appErr != nil {
		return "", appErr
	}
	return username, nil
}

func success(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true})
}
