package middleware

import (
	"context"
	"time"

	"luci-rpc/transport"

	"github.com/rs/zerolog"
)

// LoggingMiddleware logs every exchange at debug level and failures at warn.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.Warn().
					Err(err).
					Str("url", req.URL).
					Int("calls", req.Calls).
					Dur("duration", duration).
					Msg("ubus request failed")
				return resp, err
			}

			evt := logger.Debug()
			if !resp.OK() {
				evt = logger.Warn()
			}
			evt.Str("url", req.URL).
				Int("calls", req.Calls).
				Int("status", resp.Status).
				Int("bytes", len(resp.Body)).
				Dur("duration", duration).
				Msg("ubus request")
			return resp, nil
		}
	}
}
