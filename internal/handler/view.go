package handler

import (
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFiles embed.FS

// TemplateRenderer is an echo.Renderer over the embedded templates.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	t, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{templates: t}, nil
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// ViewHandler serves the HTML landing page at GET /.
type ViewHandler struct {
	Title         string
	QuotePath     string
	APIKeyHeader  string
	RequireAPIKey bool
}

func (h *ViewHandler) Index(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", h)
}
