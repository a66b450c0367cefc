package cli

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"luci-rpc/client"
	"luci-rpc/config"
	"luci-rpc/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFixtureEndpoint(t *testing.T) string {
	t.Helper()
	fixture, err := server.ParseFixture(defaultFixture)
	require.NoError(t, err)

	svr := server.NewServer(client.DefaultBaseURL, server.NewSessionStore(fixture.Users))
	fixture.Install(svr)
	ts := httptest.NewServer(svr)
	t.Cleanup(ts.Close)
	return ts.URL + client.DefaultBaseURL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, env := range []string{config.EnvBaseURL, config.EnvSessionID, config.EnvTimeout, config.EnvEtcd} {
		t.Setenv(env, "")
	}
	configPath, baseURL, sessionID = "", "", ""
	zonesBatched = false
	pollInterval = 30 * time.Second

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(io.Discard)
	RootCmd.SetArgs(append([]string{"--json-log"}, args...))
	err := RootCmd.Execute()
	return out.String(), err
}

func login(t *testing.T, url string) string {
	t.Helper()
	out, err := run(t, "--base-url", url, "login", "root", "luci")
	require.NoError(t, err)
	sid := strings.TrimSpace(out)
	require.Len(t, sid, 32)
	return sid
}

func TestLoginRejected(t *testing.T) {
	url := startFixtureEndpoint(t)
	_, err := run(t, "--base-url", url, "login", "root", "nope")
	assert.ErrorContains(t, err, "login failed")
}

func TestCallCommand(t *testing.T) {
	url := startFixtureEndpoint(t)
	sid := login(t, url)

	out, err := run(t, "--base-url", url, "--session", sid, "call", "system", "board")
	require.NoError(t, err)
	assert.Contains(t, out, `"model": "Mock Router"`)

	out, err = run(t, "--base-url", url, "--session", sid, "call", "uci", "get", `{"config":"network"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"br-lan"`)

	_, err = run(t, "--base-url", url, "--session", sid, "call", "uci", "get", `[1]`)
	assert.ErrorContains(t, err, "JSON object")

	_, err = run(t, "--base-url", url, "call", "system", "board")
	assert.ErrorContains(t, err, "Access denied")
}

func TestListCommand(t *testing.T) {
	url := startFixtureEndpoint(t)

	out, err := run(t, "--base-url", url, "list")
	require.NoError(t, err)
	assert.Equal(t, "luci\nnetwork.interface\nsession\nsystem\nuci\n", out)

	out, err = run(t, "--base-url", url, "list", "uci")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestHintsCommand(t *testing.T) {
	url := startFixtureEndpoint(t)
	sid := login(t, url)

	out, err := run(t, "--base-url", url, "--session", sid, "hints")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "MAC"))
	assert.Contains(t, lines[1], "nas")
	assert.Contains(t, lines[1], "fd00::10")
}

func TestZonesCommand(t *testing.T) {
	url := startFixtureEndpoint(t)
	sid := login(t, url)

	for _, args := range [][]string{{"zones"}, {"zones", "--batch"}} {
		out, err := run(t, append([]string{"--base-url", url, "--session", sid}, args...)...)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3, args)
		assert.Contains(t, lines[1], "lan(up)")
		assert.Contains(t, lines[2], "wan(up) wan6(down)")
		assert.Contains(t, lines[2], "true")
	}
}

func TestRegisterNeedsEtcd(t *testing.T) {
	_, err := run(t, "register", "http://192.168.1.1/ubus")
	assert.ErrorContains(t, err, "no etcd endpoints")
}

func TestPollRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []string{"0", "-5s"} {
		_, err := run(t, "--base-url", "http://127.0.0.1:1/ubus", "poll", "--interval", interval)
		assert.ErrorContains(t, err, "--interval must be positive", interval)
	}
}

// Nothing listens on 127.0.0.1:1, so discovery has to give up after
// rpc_timeout instead of waiting for etcd forever.
func TestDiscoveryGivesUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luci-rpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("etcd: [127.0.0.1:1]\nrouter: gw\nrpc_timeout: 1\n"), 0o600))

	start := time.Now()
	_, err := run(t, "--config", path, "list")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
