package quote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akave-ai/quoteedge/internal/model"
	"github.com/akave-ai/quoteedge/internal/upstream"
)

// Fetcher is the upstream capability the service needs. *upstream.Client
// implements it.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, out any, opts ...upstream.CallOption) error
}

// Service reshapes quotes from a third-party source into model.Quote.
type Service struct {
	fetcher Fetcher
	url     string
	timeout time.Duration
	source  string
}

func NewService(fetcher Fetcher, url string, timeout time.Duration, source string) *Service {
	return &Service{fetcher: fetcher, url: url, timeout: timeout, source: source}
}

// payload is the subset of the upstream response the service uses.
type payload struct {
	ID     json.RawMessage `json:"id"`
	Quote  json.RawMessage `json:"quote"`
	Author json.RawMessage `json:"author"`
}

// Random fetches one quote. Upstream errors are returned unchanged.
func (s *Service) Random(ctx context.Context) (model.Quote, error) {
	var p payload
	if err := s.fetcher.GetJSON(ctx, s.url, &p, upstream.WithTimeout(s.timeout)); err != nil {
		return model.Quote{}, err
	}
	return model.Quote{
		ID:     p.ID,
		Quote:  p.Quote,
		Author: p.Author,
		Source: s.source,
	}, nil
}
