// Package transport performs the HTTP exchange behind every ubus call.
//
// One Post carries one envelope or one batch of envelopes. The transport does
// not look inside the body; frame checks belong to the protocol package.
package transport

import (
	"context"
	"time"
)

// Request is a single POST to the ubus endpoint.
type Request struct {
	URL         string
	Body        []byte
	ContentType string
	// Timeout bounds the whole exchange. Zero means no per-request bound.
	Timeout time.Duration
	// Credentials sends and stores cookies for the endpoint.
	Credentials bool
	// Calls is the number of envelopes carried in Body.
	Calls int
}

// Response is the raw HTTP outcome.
type Response struct {
	Status     int
	StatusText string
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport posts a request body and returns the response.
type Transport interface {
	Post(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) Post(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
