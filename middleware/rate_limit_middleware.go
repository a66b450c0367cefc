package middleware

import (
	"context"
	"errors"

	"luci-rpc/transport"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the token bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware throttles outgoing requests with a token bucket so a
// busy panel cannot flood rpcd on a small router. Excess requests are
// rejected, not queued.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
