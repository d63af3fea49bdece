package ports

import (
	"context"
	"net/http"
)

// Request is a single outbound HTTP exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw result of a Request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is in the 2xx range.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport performs HTTP exchanges. Implementations return an error only
// when no response was received; non-2xx statuses are not errors here.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}
