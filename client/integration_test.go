package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"luci-rpc/client"
	"luci-rpc/protocol"
	"luci-rpc/server"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endpointPrefix = "/cgi-bin/luci/admin/ubus"

const fixture = `
users:
  root: secret
objects:
  luci:
    host_hints:
      data:
        "00:11:22:33:44:55": {name: nas}
  uci:
    get:
      key: config
      data:
        network:
          values:
            lan: {".type": interface, proto: static}
`

func startEndpoint(t *testing.T) string {
	t.Helper()
	f, err := server.ParseFixture([]byte(fixture))
	require.NoError(t, err)

	svr := server.NewServer(endpointPrefix, server.NewSessionStore(f.Users))
	f.Install(svr)

	ts := httptest.NewServer(svr)
	t.Cleanup(ts.Close)
	return ts.URL + endpointPrefix
}

func TestAgainstEndpoint(t *testing.T) {
	ctx := context.Background()
	c := client.New(client.WithBaseURL(startEndpoint(t)), client.WithLogger(zerolog.Nop()))

	hints := client.Declare(c, client.Procedure[map[string]any]{
		Object: "luci", Method: "host_hints",
		Expect: &client.Expect[map[string]any]{Default: map[string]any{}},
	})

	// anonymous sessions may only log in
	_, err := hints.Call(ctx)
	var remote *protocol.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, protocol.CodeAccessDenied, remote.Code)

	login := client.Declare(c, client.Procedure[string]{
		Object: "session", Method: "login", Params: []string{"username", "password"},
		Expect: &client.Expect[string]{Key: "ubus_rpc_session"},
	})
	sid, err := login.Call(ctx, "root", "secret")
	require.NoError(t, err)
	require.Len(t, sid, 32)
	c.SetSessionID(sid)

	got, err := hints.Call(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"00:11:22:33:44:55": map[string]any{"name": "nas"}}, got)

	sections := client.Declare(c, client.Procedure[map[string]map[string]string]{
		Object: "uci", Method: "get", Params: []string{"config"},
		Expect: &client.Expect[map[string]map[string]string]{Key: "values", Default: map[string]map[string]string{}},
	})

	b := c.NewBatch()
	network := sections.Add(b, "network")
	missing := sections.Add(b, "wireless")
	require.NoError(t, b.Send(ctx))

	v, err := network.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "static", v["lan"]["proto"])

	// a failure status degrades to the default
	v, err = missing.Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	names, err := c.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"luci", "session", "uci"}, names)

	// named list replies are objects, which list does not accept
	list, err := c.List(ctx, "uci")
	require.NoError(t, err)
	assert.Empty(t, list)
}
