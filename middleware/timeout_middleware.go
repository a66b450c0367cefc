package middleware

import (
	"context"
	"fmt"
	"time"

	"luci-rpc/protocol"
	"luci-rpc/transport"
)

// TimeOutMiddleware bounds each exchange by req.Timeout, or by fallback when
// the request carries none. An expired exchange fails like any other
// transport error; the abandoned POST finishes in the background.
func TimeOutMiddleware(fallback time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			timeout := req.Timeout
			if timeout <= 0 {
				timeout = fallback
			}
			if timeout <= 0 {
				return next(ctx, req)
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp *transport.Response
				err  error
			}
			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, &protocol.TransportError{
					Err: fmt.Errorf("request timed out after %s: %w", timeout, ctx.Err()),
				}
			}
		}
	}
}
