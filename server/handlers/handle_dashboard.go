package handlers

import (
	"time"

	"flatnas/apperrors"
	"flatnas/db"
	"flatnas/server/middleware/auth"
	"flatnas/services/dashboard"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// DashboardHandler serves the per-user dashboard document.
type DashboardHandler struct {
	svc *dashboard.Service
}

func NewDashboardHandler(svc *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// HandleData returns the caller's dashboard, or admin's for anonymous
// callers. With ?ping=1 it only checks that the record loads.
func (h *DashboardHandler) HandleData() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := auth.FromContext(c).Viewer()

		if queryFlag(c, "ping") {
			if err := h.svc.Ping(username); err != nil {
				return err
			}
			return c.JSON(fiber.Map{"success": true, "ts": time.Now().UnixMilli()})
		}

		data, err := h.svc.Data(username)
		if err != nil {
			return err
		}
		return c.JSON(data)
	}
}

func (h *DashboardHandler) HandleSave() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, err := currentUser(c)
		if err != nil {
			return err
		}
		if isEmptyBody(c.Body()) {
			return apperrors.NewBadRequest("Empty body")
		}

		rec, err := decodeRecord(c.Body())
		if err != nil {
			return err
		}
		if err := h.svc.Save(username, rec); err != nil {
			return err
		}
		return success(c)
	}
}

func (h *DashboardHandler) HandleImport() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, err := currentUser(c)
		if err != nil {
			return err
		}

		rec, err := decodeRecord(c.Body())
		if err != nil {
			return err
		}
		if err := h.svc.Import(username, rec); err != nil {
			return err
		}
		return success(c)
	}
}

func (h *DashboardHandler) HandleReset() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, err := currentUser(c)
		if err != nil {
			return err
		}
		if err := h.svc.Reset(username); err != nil {
			return err
		}
		return success(c)
	}
}

// HandleSaveDefault snapshots the admin dashboard as the new-user template.
// Mount behind auth.RequireAdmin.
func (h *DashboardHandler) HandleSaveDefault() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := h.svc.SaveDefaultTemplate(); err != nil {
			return err
		}
		return success(c)
	}
}

// HandleAddBookmark is called by the browser extension. The target user is
// resolved before the body is looked at.
func (h *DashboardHandler) HandleAddBookmark() fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, appErr := auth.FromContext(c).BookmarkTarget()
		if appErr != nil {
			return appErr
		}

		var req dashboard.NewBookmark
		if err := bindJSON(c, &req, "Missing title or url"); err != nil {
			return err
		}

		if err := h.svc.AddBookmark(username, req); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Bookmark added"})
	}
}

func decodeRecord(body []byte) (*db.UserRecord, error) {
	var rec db.UserRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, apperrors.NewBadRequest("Invalid JSON body").WithInternal(err)
	}
	return &rec, nil
}
