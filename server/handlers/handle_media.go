package handlers

import (
	"flatnas/apperrors"
	"flatnas/services/media"

	"github.com/gofiber/fiber/v2"
)

const uploadField = "files"

func HandleListMedia(svc *media.Service, kind media.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := svc.List(kind)
		if err != nil {
			return err
		}
		return c.JSON(names)
	}
}

// HandleUploadMedia stores the multipart "files" field. Mount behind
// auth.Require.
func HandleUploadMedia(svc *media.Service, kind media.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewBadRequest("No files uploaded").WithInternal(err)
		}

		count, err := svc.Upload(kind, form.File[uploadField])
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "count": count})
	}
}

func HandleDeleteMedia(svc *media.Service, kind media.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(kind, c.Params("filename")); err != nil {
			return err
		}
		return success(c)
	}
}
