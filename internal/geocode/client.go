package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 8 * time.Second

const maxErrorBody = 512

// Option configures a provider client.
type Option func(*options)

type options struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.client = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit caps outgoing requests at rps. Zero disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func newOptions(baseURL string, opts []Option) options {
	o := options{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// get performs a rate-limited GET and returns the open response on 2xx.
func (o options) get(ctx context.Context, provider, rawURL string) (*http.Response, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", provider, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		// the URL carries the access token, keep it out of the error
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%s: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}
