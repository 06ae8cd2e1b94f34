package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/quoteedge/internal/apperr"
)

// APIResponse is the envelope for operational endpoints.
type APIResponse struct {
	Data    any    `json:"data"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path"`
}

// ErrorBody is the shape of every error response. Detail is omitted entirely
// when empty, which is always the case in production.
type ErrorBody struct {
	Error  string         `json:"error"`
	Detail string         `json:"detail,omitempty"`
	Issues []apperr.Issue `json:"issues,omitempty"`
}

// pathFromContext returns the request path from Echo context.
func pathFromContext(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().URL.Path
}

// OK sends a 200 response with data.
func OK(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Data:    data,
		Status:  http.StatusOK,
		Message: message,
		Path:    pathFromContext(c),
	})
}

// Error writes e with its own status. The cause is included as detail only
// when withDetail is set.
func Error(c echo.Context, e *apperr.Error, withDetail bool) error {
	body := ErrorBody{Error: e.Message, Issues: e.Issues}
	if withDetail {
		body.Detail = e.Detail()
	}
	if c.Request().Method == http.MethodHead {
		return c.NoContent(e.Status)
	}
	return c.JSON(e.Status, body)
}

// Status writes a bare error body for statuses that have no apperr kind,
// such as router 404s.
func Status(c echo.Context, status int, message string) error {
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return c.JSON(status, ErrorBody{Error: message})
}
