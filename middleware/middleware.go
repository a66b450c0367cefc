// Package middleware wraps the transport exchange of every ubus request.
//
//	Chain(A, B, C)(post) -> A(B(C(post)))
//
// Middlewares see the raw POST, not individual envelopes: a batch passes
// through the chain once.
package middleware

import (
	"context"

	"luci-rpc/transport"
)

type HandlerFunc func(ctx context.Context, req *transport.Request) (*transport.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one; the first wraps all the others.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Handler adapts a transport to the innermost HandlerFunc.
func Handler(t transport.Transport) HandlerFunc {
	return t.Post
}
