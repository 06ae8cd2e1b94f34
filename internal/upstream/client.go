// Package upstream performs single, bounded-time outbound JSON calls.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/akave-ai/quoteedge/internal/apperr"
)

const (
	DefaultTimeout = 6 * time.Second

	maxBodyBytes = 1 << 20
)

// Client issues one GET per call. It never retries.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

type Option func(*Client)

// WithTransport replaces the base transport. Instrumentation still wraps it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithDefaultTimeout changes the timeout used when a call does not set one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Transport: http.DefaultTransport},
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.http.Transport = newrelic.NewRoundTripper(otelhttp.NewTransport(c.http.Transport))
	return c
}

type callOptions struct {
	timeout time.Duration
}

type CallOption func(*callOptions)

// WithTimeout bounds a single call. Non-positive values keep the default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// GetJSON fetches url and decodes the JSON body into out.
//
// Errors are *apperr.Error: KindUpstreamTimeout when the call outlived its
// timeout, KindUpstreamFailure for non-2xx statuses, transport failures and
// undecodable bodies.
func (c *Client) GetJSON(ctx context.Context, url string, out any, opts ...CallOption) error {
	o := callOptions{timeout: c.timeout}
	for _, fn := range opts {
		fn(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.UpstreamFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.classify(ctx, url, start, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.logger.Warn().Str("url", url).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("upstream non-success status")
		return apperr.UpstreamStatus(resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return c.classify(ctx, url, start, fmt.Errorf("decode body: %w", err))
	}
	c.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("upstream call ok")
	return nil
}

func (c *Client) classify(ctx context.Context, url string, start time.Time, err error) error {
	elapsed := time.Since(start)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn().Str("url", url).Dur("elapsed", elapsed).Msg("upstream call timed out")
		return apperr.UpstreamTimeout(err)
	}
	c.logger.Warn().Err(err).Str("url", url).Dur("elapsed", elapsed).Msg("upstream call failed")
	return apperr.UpstreamFailure(err)
}
