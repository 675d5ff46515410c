package server

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/html/v2"
)

//go:embed views/*.html
var viewsFS embed.FS

// newViewEngine loads the embedded landing and error pages.
func newViewEngine() (*html.Engine, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(views), ".html")
	addTemplateFunctions(engine)
	return engine, nil
}

// addTemplateFunctions adds custom functions to the template engine
func addTemplateFunctions(engine *html.Engine) {
	engine.AddFunc("year", func() int {
		return time.Now().Year()
	})

	// Default value helper: default value defaultValue
	engine.AddFunc("default", func(value, defaultValue any) any {
		if value == nil || value == "" {
			return defaultValue
		}
		return value
	})
}
