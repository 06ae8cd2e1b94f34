package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/model"
	"github.com/akave-ai/quoteedge/internal/validate"
)

// QuoteQuery is the query schema of GET /api/quote.
var QuoteQuery = validate.Fields{
	"maxLength": validate.Optional(validate.Int(10, 300)),
}

// QuoteSource is what QuoteHandler needs from the quote service.
type QuoteSource interface {
	Random(ctx context.Context) (model.Quote, error)
}

// QuoteHandler serves GET /api/quote. Errors from the source are returned
// as-is to the terminal error handler.
type QuoteHandler struct {
	Quotes QuoteSource
	Logger zerolog.Logger
}

func (h *QuoteHandler) Get(c echo.Context) error {
	if in := validate.FromContext(c); in != nil {
		if n, ok := in.Query.Int("maxLength"); ok {
			h.Logger.Debug().Int("max_length", n).Msg("quote requested")
		}
	}

	// Only the upstream deadline cancels the call, never a client disconnect.
	q, err := h.Quotes.Random(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}
