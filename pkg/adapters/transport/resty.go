package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/companion/pkg/ports"
	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds a single exchange, including image downloads.
const DefaultTimeout = 60 * time.Second

// Resty implements ports.Transport on a resty client.
type Resty struct {
	client *resty.Client
}

// Option configures the transport.
type Option func(*resty.Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		c.SetTimeout(d)
	}
}

// WithUserAgent sets the User-Agent of every request.
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		c.SetHeader("User-Agent", ua)
	}
}

// WithTransport replaces the underlying RoundTripper (e.g. for proxies or tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *resty.Client) {
		c.SetTransport(rt)
	}
}

// New creates a resty-backed transport. Retries are disabled.
func New(opts ...Option) *Resty {
	client := resty.New()
	for _, opt := range opts {
		opt(client)
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultTimeout)
	}
	client.SetRetryCount(0)
	return &Resty{client: client}
}

// Send performs the exchange. Any status code is returned as a Response;
// only transport failures are errors.
func (t *Resty) Send(ctx context.Context, req ports.Request) (ports.Response, error) {
	r := t.client.R().SetContext(ctx)
	if len(req.Header) > 0 {
		r.SetHeaderMultiValues(req.Header)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return ports.Response{}, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	return ports.Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}
