package validate

import (
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/quoteedge/internal/apperr"
	"github.com/akave-ai/quoteedge/internal/response"
)

// ContextKey is where Request stores the *Validated result.
const ContextKey = "validated"

// Input declares the schemas for a route. Any part may be nil.
type Input struct {
	Query  ValuesSchema
	Params ValuesSchema
	Body   BodySchema
}

// Validated holds the coerced request parts of a route that passed validation.
type Validated struct {
	Query  Values
	Params Values
	Body   any
}

// Request validates each configured part and stores the result under
// ContextKey. Violations are answered with 400 and never reach the handler;
// other errors go to the terminal error handler.
func Request(in Input) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			out := &Validated{}
			var issues []apperr.Issue

			if in.Query != nil {
				v, errs := in.Query.ParseValues(c.QueryParams())
				out.Query = v
				issues = append(issues, errs...)
			}
			if in.Params != nil {
				v, errs := in.Params.ParseValues(pathValues(c))
				out.Params = v
				issues = append(issues, errs...)
			}
			if in.Body != nil {
				body, err := in.Body.ParseBody(c)
				if err != nil {
					e, ok := apperr.As(err)
					if !ok || e.Kind != apperr.KindValidation {
						return err
					}
					issues = append(issues, e.Issues...)
				}
				out.Body = body
			}

			if len(issues) > 0 {
				return response.Error(c, apperr.Validation(issues), false)
			}
			c.Set(ContextKey, out)
			return next(c)
		}
	}
}

// FromContext returns the validated input, or nil when the route has no
// validator.
func FromContext(c echo.Context) *Validated {
	v, _ := c.Get(ContextKey).(*Validated)
	return v
}

func pathValues(c echo.Context) url.Values {
	names := c.ParamNames()
	values := c.ParamValues()
	out := make(url.Values, len(names))
	for i, name := range names {
		if i < len(values) {
			out.Set(name, values[i])
		}
	}
	return out
}
