package luci_test

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"luci-rpc/client"
	"luci-rpc/luci"
	"luci-rpc/middleware"
	"luci-rpc/server"
	"luci-rpc/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "/cgi-bin/luci/admin/ubus"

const fixture = `
users:
  root: secret
objects:
  luci:
    host_hints:
      data:
        "00:11:22:33:44:55": {name: nas, ipaddrs: [192.168.1.10], ip6addrs: ["fd00::10"]}
  uci:
    get:
      key: config
      data:
        firewall:
          values:
            cfg01: {".type": defaults, ".index": 0, input: ACCEPT}
            cfg02: {".type": zone, ".index": 1, name: lan, network: [lan], input: ACCEPT, output: ACCEPT, forward: ACCEPT}
            cfg03: {".type": zone, ".index": 2, name: wan, network: "wan wan6", input: REJECT, output: ACCEPT, forward: REJECT, masq: "1"}
            cfg04: {".type": forwarding, ".index": 3, src: lan, dest: wan}
  network.interface:
    dump:
      data:
        interface:
          - {interface: lan, up: true, proto: static, l3_device: br-lan}
          - {interface: wan, up: false, proto: dhcp}
`

// setup returns an authenticated API and a counter of HTTP round trips.
func setup(t *testing.T) (*luci.API, *atomic.Int32) {
	t.Helper()
	f, err := server.ParseFixture([]byte(fixture))
	require.NoError(t, err)

	svr := server.NewServer(prefix, server.NewSessionStore(f.Users))
	f.Install(svr)
	ts := httptest.NewServer(svr)
	t.Cleanup(ts.Close)

	var posts atomic.Int32
	counter := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			posts.Add(1)
			return next(ctx, req)
		}
	}

	c := client.New(
		client.WithBaseURL(ts.URL+prefix),
		client.WithLogger(zerolog.Nop()),
		client.WithMiddleware(counter),
	)
	api := luci.New(c)

	sid, err := api.Authenticate(context.Background(), "root", "secret")
	require.NoError(t, err)
	assert.Equal(t, sid, c.SessionID())

	posts.Store(0)
	return api, &posts
}

func TestAuthenticateFails(t *testing.T) {
	f, err := server.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	svr := server.NewServer(prefix, server.NewSessionStore(f.Users))
	ts := httptest.NewServer(svr)
	defer ts.Close()

	c := client.New(client.WithBaseURL(ts.URL+prefix), client.WithLogger(zerolog.Nop()))
	api := luci.New(c)

	_, err = api.Authenticate(context.Background(), "root", "wrong")
	assert.ErrorIs(t, err, luci.ErrLoginFailed)
	assert.Equal(t, client.DefaultSessionID, c.SessionID())
}

func TestHostHints(t *testing.T) {
	api, _ := setup(t)

	hints, err := api.HostHints.Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]luci.HostHint{
		"00:11:22:33:44:55": {Name: "nas", IPv4: []string{"192.168.1.10"}, IPv6: []string{"fd00::10"}},
	}, hints)
}

func TestUCIGet(t *testing.T) {
	api, _ := setup(t)

	values, err := api.UCIGet.Call(context.Background(), "firewall")
	require.NoError(t, err)
	assert.Len(t, values, 4)

	values, err = api.UCIGet.Call(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestZones(t *testing.T) {
	api, _ := setup(t)

	zones, err := api.Zones(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, luci.Zone{
		Name: "lan", Section: "cfg02", Networks: []string{"lan"},
		Input: "ACCEPT", Output: "ACCEPT", Forward: "ACCEPT",
	}, zones[0])
	assert.Equal(t, "wan", zones[1].Name)
	assert.Equal(t, []string{"wan", "wan6"}, zones[1].Networks)
	assert.True(t, zones[1].Masq)

	only, err := api.Zones(context.Background(), "wan")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "cfg03", only[0].Section)

	_, err = api.FirewallZones.Call(context.Background(), "firewall", 42)
	assert.ErrorContains(t, err, "zone name must be a string")
}

func TestLoadZoneChoices(t *testing.T) {
	api, posts := setup(t)

	choices, err := api.LoadZoneChoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), posts.Load())

	assert.Equal(t, []string{"lan", "wan"}, choices.Names())

	wan, ok := choices.LookupZone("wan")
	require.True(t, ok)
	// wan6 is not a known interface and is skipped
	networks := choices.NetworksOf(*wan)
	require.Len(t, networks, 1)
	assert.Equal(t, "wan", networks[0].Name)
	assert.False(t, networks[0].Up)

	lan, ok := choices.LookupNetwork("lan")
	require.True(t, ok)
	assert.Equal(t, "br-lan", lan.Device)

	_, ok = choices.LookupZone("dmz")
	assert.False(t, ok)
}

func TestOverviewIsOneRoundTrip(t *testing.T) {
	api, posts := setup(t)

	ov, err := api.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), posts.Load())

	assert.Contains(t, ov.Hosts, "00:11:22:33:44:55")
	assert.Len(t, ov.Zones, 2)
	assert.Len(t, ov.Networks, 2)
}

func TestLoadZoneChoicesFailsWithSession(t *testing.T) {
	api, _ := setup(t)
	api.Client().SetSessionID(client.DefaultSessionID)

	_, err := api.LoadZoneChoices(context.Background())
	assert.ErrorContains(t, err, "Access denied")
}
