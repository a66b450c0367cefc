package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"luci-rpc/protocol"
	"luci-rpc/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler answers every request with an empty successful frame.
func echoHandler(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return &transport.Response{Status: 200, StatusText: "OK", Body: []byte("ok")}, nil
}

// slowHandler ignores its context and sleeps 200ms.
func slowHandler(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	time.Sleep(200 * time.Millisecond)
	return echoHandler(ctx, req)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	handler := LoggingMiddleware(zerolog.New(&buf).Level(zerolog.DebugLevel))(echoHandler)

	resp, err := handler(context.Background(), &transport.Request{URL: "http://r/ubus/luci.host_hints", Calls: 1})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))

	assert.Contains(t, buf.String(), `"url":"http://r/ubus/luci.host_hints"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestLoggingFailure(t *testing.T) {
	var buf bytes.Buffer
	failing := func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return nil, errors.New("connection refused")
	}
	handler := LoggingMiddleware(zerolog.New(&buf))(failing)

	_, err := handler(context.Background(), &transport.Request{URL: "http://r/ubus"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "connection refused")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	_, err := handler(context.Background(), &transport.Request{})
	assert.NoError(t, err)
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeOutMiddleware(5 * time.Second)(slowHandler)

	// the request's own timeout wins over the fallback
	_, err := handler(context.Background(), &transport.Request{Timeout: 50 * time.Millisecond})
	require.Error(t, err)

	var terr *protocol.TransportError
	require.True(t, errors.As(err, &terr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
}

func TestTimeoutFallback(t *testing.T) {
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	_, err := handler(context.Background(), &transport.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: two pass immediately, the third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := &transport.Request{}

	for i := 0; i < 2; i++ {
		_, err := handler(context.Background(), req)
		require.NoError(t, err, "request %d should pass", i)
	}

	_, err := handler(context.Background(), req)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	handler := MetricsMiddleware(m)(echoHandler)
	_, err := handler(context.Background(), &transport.Request{Calls: 3})
	require.NoError(t, err)

	failing := MetricsMiddleware(m)(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return nil, errors.New("boom")
	})
	_, err = failing(context.Background(), &transport.Request{Calls: 1})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Calls))
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	chained := Chain(mark("a"), mark("b"), TimeOutMiddleware(500*time.Millisecond))
	resp, err := chained(echoHandler)(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestHandlerAdaptsTransport(t *testing.T) {
	h := Handler(transport.Func(echoHandler))
	resp, err := h(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}
