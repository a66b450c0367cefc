// Package client calls remote procedures on a ubus JSON-RPC endpoint.
//
// A Client owns the session id, the endpoint base URL and the envelope id
// counter. Procedures are declared once with Declare and then invoked any
// number of times, alone (Call, Go) or grouped into one round trip (Batch):
//
//	hints := client.Declare(c, client.Procedure[map[string]any]{
//		Object: "luci", Method: "host_hints",
//		Expect: &client.Expect[map[string]any]{Default: map[string]any{}},
//	})
//	v, err := hints.Call(ctx)
//
// Nothing is retried: every failure is returned to the caller that issued it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"luci-rpc/codec"
	"luci-rpc/message"
	"luci-rpc/middleware"
	"luci-rpc/protocol"
	"luci-rpc/transport"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSessionID is the anonymous rpcd session.
	DefaultSessionID = "00000000000000000000000000000000"
	// DefaultBaseURL is where LuCI mounts its ubus proxy.
	DefaultBaseURL = "/cgi-bin/luci/admin/ubus"
	// DefaultTimeout bounds each HTTP exchange.
	DefaultTimeout = 5 * time.Second
)

// Client is safe for concurrent use. Changing the session id or base URL
// affects envelopes built afterwards; requests already in flight keep the
// values they were built with.
type Client struct {
	mu        sync.RWMutex
	sessionID string
	baseURL   string

	lastID atomic.Uint64

	timeout     time.Duration
	codec       codec.Codec
	transport   transport.Transport
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithSessionID(sid string) Option {
	return func(c *Client) {
		c.sessionID = sid
	}
}

func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithCodec(cdc codec.Codec) Option {
	return func(c *Client) {
		c.codec = cdc
	}
}

// WithMiddleware appends middlewares around the transport, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client. Without WithTransport it posts over HTTP.
func New(opts ...Option) *Client {
	c := &Client{
		sessionID: DefaultSessionID,
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		codec:     codec.Default(),
		logger:    log.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = transport.NewHTTPTransport()
	}

	// The timeout sits innermost so every exchange is bounded however the
	// chain is composed.
	chain := append(append([]middleware.Middleware{}, c.middlewares...), middleware.TimeOutMiddleware(c.timeout))
	c.handler = middleware.Chain(chain...)(middleware.Handler(c.transport))
	return c
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) SetSessionID(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sid
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

func (c *Client) SetBaseURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = url
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// nextID returns a fresh envelope id; the first is 1.
func (c *Client) nextID() uint64 {
	return c.lastID.Add(1)
}

// pending correlates one outstanding envelope with whoever waits for it.
// settle is called exactly once.
type pending struct {
	req    *message.Request
	settle func(protocol.Value, error)
}

// newCall builds a call envelope from the current session and a fresh id.
func (c *Client) newCall(object, method string, args message.Args) (*message.Request, error) {
	return message.NewCall(c.nextID(), c.SessionID(), object, method, args)
}

// post sends body to base URL + path through the middleware chain and maps
// every failure to a *protocol.TransportError.
func (c *Client) post(ctx context.Context, path string, body any, calls int) (*transport.Response, error) {
	data, err := c.codec.Encode(body)
	if err != nil {
		return nil, &protocol.TransportError{Err: err}
	}

	req := &transport.Request{
		URL:         c.BaseURL() + path,
		Body:        data,
		ContentType: c.codec.ContentType(),
		Timeout:     c.timeout,
		Credentials: true,
		Calls:       calls,
	}

	resp, err := c.handler(ctx, req)
	if err != nil {
		var terr *protocol.TransportError
		if errors.As(err, &terr) {
			return nil, err
		}
		return nil, &protocol.TransportError{Err: err}
	}
	if !resp.OK() {
		return nil, &protocol.TransportError{Status: resp.Status, StatusText: resp.StatusText}
	}
	return resp, nil
}

// dispatch performs one round trip for calls and settles each of them.
// A batch is always sent as an array, even with a single member. The
// returned error is the transport failure, if any, already delivered to
// every call.
func (c *Client) dispatch(ctx context.Context, calls []*pending, batch bool) error {
	if len(calls) == 0 {
		return nil
	}

	var (
		path strings.Builder
		body any
	)
	if batch {
		reqs := make([]*message.Request, len(calls))
		for i, p := range calls {
			if i == 0 {
				path.WriteByte('/')
			} else {
				path.WriteByte(';')
			}
			path.WriteString(p.req.Path())
			reqs[i] = p.req
		}
		body = reqs
	} else {
		path.WriteByte('/')
		path.WriteString(calls[0].req.Path())
		body = calls[0].req
	}

	resp, err := c.post(ctx, path.String(), body, len(calls))
	if err != nil {
		for _, p := range calls {
			p.settle(protocol.Value{}, err)
		}
		return err
	}

	if !batch {
		v, err := protocol.DecodeCallReply(c.codec, resp.Body)
		calls[0].settle(v, err)
		return nil
	}

	values, errs := protocol.DecodeBatchReply(c.codec, resp.Body, len(calls))
	for i, p := range calls {
		p.settle(values[i], errs[i])
	}
	return nil
}

// List introspects the endpoint. With no names it returns the published
// object names; with names whatever the endpoint reports for them. A
// malformed reply yields an empty slice, not an error; only a failed HTTP
// exchange is reported.
func (c *Client) List(ctx context.Context, objects ...string) ([]json.RawMessage, error) {
	req, err := message.NewList(c.nextID(), objects...)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "", req, 1)
	if err != nil {
		return nil, err
	}

	list := protocol.DecodeListReply(c.codec, resp.Body)
	c.logger.Debug().Uint64("id", req.ID).Int("entries", len(list)).Msg("ubus list")
	return list, nil
}

// ListObjects is List without names, keeping only string entries.
func (c *Client) ListObjects(ctx context.Context) ([]string, error) {
	list, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(list))
	for _, raw := range list {
		var name string
		if c.codec.Decode(raw, &name) == nil {
			names = append(names, name)
		}
	}
	return names, nil
}
