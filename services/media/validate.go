package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"flatnas/apperrors"

	_ "golang.org/x/image/webp"
)

// magicBytes are the leading bytes of each raster format accepted as a background.
var magicBytes = map[string][]byte{
	"jpeg": {0xFF, 0xD8, 0xFF},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38}, // GIF87a or GIF89a
	"webp": {0x52, 0x49, 0x46, 0x46}, // RIFF container
}

// formatForExtension maps a raster extension to the image package format name.
func formatForExtension(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	}
	return ""
}

func hasMagic(content []byte, format string) bool {
	magic, ok := magicBytes[format]
	if !ok || len(content) < len(magic) {
		return false
	}
	if format == "webp" {
		return len(content) >= 12 &&
			bytes.Equal(content[0:4], magic) &&
			bytes.Equal(content[8:12], []byte("WEBP"))
	}
	return bytes.Equal(content[:len(magic)], magic)
}

// validateImage checks that content really is an image of the format its
// extension claims, and that it is not absurdly large.
func validateImage(filename, ext string, content []byte, maxDimension int) error {
	if ext == ".svg" {
		head := content
		if len(head) > 4096 {
			head = head[:4096]
		}
		if !strings.Contains(strings.ToLower(string(head)), "<svg") {
			return apperrors.NewFileValidationError(filename, []string{"not an svg document"})
		}
		return nil
	}

	format := formatForExtension(ext)
	if format == "" {
		return nil
	}

	if !hasMagic(content, format) {
		detected := http.DetectContentType(content)
		return apperrors.NewFileValidationError(filename, []string{
			fmt.Sprintf("content does not match extension: extension=%s, detected=%s", ext, detected),
		})
	}

	cfg, decoded, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return apperrors.NewFileValidationError(filename, []string{"file is not a valid image or is corrupted"}).
			WithInternal(err)
	}
	if decoded != format {
		return apperrors.NewFileValidationError(filename, []string{
			fmt.Sprintf("format mismatch: extension=%s, actual=%s", ext, decoded),
		})
	}
	if maxDimension > 0 && (cfg.Width > maxDimension || cfg.Height > maxDimension) {
		return apperrors.NewFileValidationError(filename, []string{
			fmt.Sprintf("image too large: %dx%d (max: %dx%d)", cfg.Width, cfg.Height, maxDimension, maxDimension),
		})
	}
	return nil
}
