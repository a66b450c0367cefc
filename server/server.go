// Package server implements a ubus JSON-RPC endpoint compatible with the
// uhttpd ubus handler, for development and tests.
//
// Request processing:
//
//	POST {prefix}[/obj.method[;obj.method...]]
//	  -> single envelope or array of envelopes
//	  -> per envelope: version check -> session check -> object/method lookup -> handler
//	  -> reply (or array of replies, same order)
//
// The path suffix is informational only, as with uhttpd: dispatch uses the
// envelope params.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"luci-rpc/message"
	"luci-rpc/protocol"
	"luci-rpc/registry"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// Server is the mock ubus endpoint.
type Server struct {
	echo     *echo.Echo
	prefix   string
	mu       sync.RWMutex
	objects  map[string]Object
	sessions *SessionStore

	// Announcement into a registry, set by Serve.
	registry     registry.Registry
	router       string
	advertiseURL string
	cancel       context.CancelFunc
}

// NewServer creates an endpoint mounted at prefix (e.g. "/cgi-bin/luci/admin/ubus")
// with the built-in "session" object.
func NewServer(prefix string, sessions *SessionStore) *Server {
	svr := &Server{
		echo:     echo.New(),
		prefix:   prefix,
		objects:  make(map[string]Object),
		sessions: sessions,
		cancel:   func() {},
	}
	svr.echo.HideBanner = true
	svr.echo.HidePort = true
	svr.echo.Use(echomw.Recover())
	svr.echo.Use(requestLogger)

	svr.echo.POST(prefix, svr.handle)
	svr.echo.POST(prefix+"/*", svr.handle)

	svr.Register("session", sessions.object())
	return svr
}

// ServeHTTP lets the endpoint run under any http.Server or httptest.
func (svr *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svr.echo.ServeHTTP(w, r)
}

// Serve listens on address. When reg is non-nil the endpoint is announced
// as advertiseURL under router for as long as the server runs.
func (svr *Server) Serve(address, advertiseURL string, reg registry.Registry, router string) error {
	if reg != nil {
		ctx, cancel := context.WithCancel(context.Background())
		svr.cancel = cancel
		svr.registry = reg
		svr.router = router
		svr.advertiseURL = advertiseURL

		if err := reg.Register(ctx, router, registry.Instance{URL: advertiseURL, Weight: 1}, 10); err != nil {
			cancel()
			return fmt.Errorf("announcing %s: %w", advertiseURL, err)
		}
	}

	log.Info().Str("address", address).Str("prefix", svr.prefix).Msg("ubus endpoint listening")
	if err := svr.echo.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown withdraws the registry announcement first, so clients stop
// picking this endpoint, then waits up to timeout for in-flight requests.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := svr.registry.Deregister(ctx, svr.router, svr.advertiseURL); err != nil {
			log.Warn().Err(err).Msg("registry deregistration failed")
		}
		cancel()
	}
	svr.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := svr.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("timeout waiting for ongoing requests to finish: %w", err)
	}
	return nil
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		log.Info().
			Str("method", c.Request().Method).
			Str("uri", c.Request().RequestURI).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("ubus request")
		return err
	}
}

func (svr *Server) handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var frames []json.RawMessage
		if err := json.Unmarshal(trimmed, &frames); err != nil {
			return c.JSON(http.StatusOK, message.NewError(nil, protocol.CodeParseError, "Parse error"))
		}
		replies := make([]*message.Reply, len(frames))
		for i, frame := range frames {
			replies[i] = svr.process(ctx, frame)
		}
		return c.JSON(http.StatusOK, replies)
	}

	if !json.Valid(trimmed) {
		return c.JSON(http.StatusOK, message.NewError(nil, protocol.CodeParseError, "Parse error"))
	}
	return c.JSON(http.StatusOK, svr.process(ctx, trimmed))
}

// envelope is a request as received; the id is echoed back verbatim.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func (svr *Server) process(ctx context.Context, frame json.RawMessage) *message.Reply {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.JSONRPC != message.Version {
		return message.NewError(env.ID, protocol.CodeInvalidRequest, "Invalid request")
	}

	switch env.Method {
	case message.MethodCall:
		return svr.processCall(ctx, &env)
	case message.MethodList:
		return svr.processList(&env)
	}
	return message.NewError(env.ID, protocol.CodeMethodNotFound, "Method not found")
}

func (svr *Server) processCall(ctx context.Context, env *envelope) *message.Reply {
	var params []json.RawMessage
	if err := json.Unmarshal(env.Params, &params); err != nil || len(params) < 3 {
		return message.NewError(env.ID, protocol.CodeInvalidParams, "Invalid parameters")
	}

	call := &Call{Args: map[string]json.RawMessage{}}
	if json.Unmarshal(params[0], &call.Session) != nil ||
		json.Unmarshal(params[1], &call.Object) != nil ||
		json.Unmarshal(params[2], &call.Method) != nil {
		return message.NewError(env.ID, protocol.CodeInvalidParams, "Invalid parameters")
	}
	if len(params) > 3 {
		if err := json.Unmarshal(params[3], &call.Args); err != nil {
			return message.NewError(env.ID, protocol.CodeInvalidParams, "Invalid parameters")
		}
	}

	if !svr.sessions.Allowed(call.Session, call.Object, call.Method) {
		return message.NewError(env.ID, protocol.CodeAccessDenied, "Access denied")
	}

	m, objectFound, methodFound := svr.lookup(call.Object, call.Method)
	if !objectFound {
		return message.NewError(env.ID, protocol.CodeObjectNotFound, "Object not found")
	}
	if !methodFound {
		return message.NewError(env.ID, protocol.CodeMethodNotFound, "Method not found")
	}

	status, data := m.Handler(ctx, call)
	reply, err := message.NewResult(env.ID, int(status), data)
	if err != nil {
		log.Error().Err(err).Str("object", call.Object).Str("method", call.Method).Msg("failed to encode method result")
		reply, _ = message.NewResult(env.ID, int(protocol.StatusUnknownError), nil)
	}
	return reply
}

// processList mirrors uhttpd: without names it returns the object names as
// an array, with names an object of method signatures.
func (svr *Server) processList(env *envelope) *message.Reply {
	var names []string
	if len(env.Params) > 0 && string(env.Params) != "null" {
		if err := json.Unmarshal(env.Params, &names); err != nil {
			return message.NewError(env.ID, protocol.CodeInvalidParams, "Invalid parameters")
		}
	}

	var data any
	if len(names) == 0 {
		data = svr.objectNames()
	} else {
		data = svr.signatures(names)
	}

	reply, err := message.NewRawResult(env.ID, data)
	if err != nil {
		return message.NewError(env.ID, protocol.CodeInvalidRequest, "Invalid request")
	}
	return reply
}
