package http

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Transport is a RoundTripper with client-side rate limiting. Idempotent
// requests that hit a rate limit or a server error are retried with
// exponential backoff.
type Transport struct {
	Base            http.RoundTripper
	Limiter         *rate.Limiter
	MaxRetryTimeout time.Duration
	logger          zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new HTTP client with rate limiting and retries
func NewClient(opts ClientOptions) *http.Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &Transport{
			Base:            http.DefaultTransport,
			Limiter:         rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
			MaxRetryTimeout: opts.MaxRetryTimeout,
			logger:          log.With().Str("component", "http_client").Logger(),
		},
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !retryable(req) {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return t.Base.RoundTrip(req)
	}

	var resp *http.Response
	operation := func() error {
		// Wait for rate limiter
		if err := t.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		resp, err = t.Base.RoundTrip(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			t.logger.Warn().Int("status", resp.StatusCode).Str("path", req.URL.Path).Msg("Retrying request")
			resp.Body.Close()
			return &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = t.MaxRetryTimeout

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// retryable reports whether req can be sent again as is
func retryable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody
}

// HTTPStatusError represents an error due to a retryable HTTP status code
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return "retryable status code: " + http.StatusText(e.StatusCode)
}
