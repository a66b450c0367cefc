// Package luci declares the ubus procedures used by the LuCI firewall views
// and the helpers built on them.
package luci

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"luci-rpc/client"
	"luci-rpc/message"
)

// ErrLoginFailed is returned when session.login yields no session id.
var ErrLoginFailed = errors.New("login failed")

// HostHint is what luci.host_hints reports for one MAC address.
type HostHint struct {
	Name string   `json:"name,omitempty"`
	IPv4 []string `json:"ipaddrs,omitempty"`
	IPv6 []string `json:"ip6addrs,omitempty"`
}

// Section is one UCI section as returned by uci.get. Option values are
// strings or lists of strings; the ".name", ".type" and ".index" members are
// added by rpcd.
type Section map[string]any

// Type returns the section type, e.g. "zone".
func (s Section) Type() string {
	return s.String(".type")
}

// Name returns the section id.
func (s Section) Name() string {
	return s.String(".name")
}

// Index returns the section position within its config, or -1.
func (s Section) Index() int {
	if n, ok := s[".index"].(float64); ok {
		return int(n)
	}
	return -1
}

// String returns a scalar option, or "" when it is missing or a list.
func (s Section) String(option string) string {
	v, _ := s[option].(string)
	return v
}

// List returns an option as a list. A scalar is split on whitespace, the way
// uci treats "option network 'lan wan'".
func (s Section) List(option string) []string {
	switch v := s[option].(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Zone is a firewall zone section.
type Zone struct {
	Name     string
	Section  string
	Networks []string
	Input    string
	Output   string
	Forward  string
	Masq     bool
}

// Network is one logical interface from network.interface.dump.
type Network struct {
	Name   string `json:"interface"`
	Up     bool   `json:"up"`
	Proto  string `json:"proto"`
	Device string `json:"l3_device,omitempty"`
}

// API holds the declared procedures of one client.
type API struct {
	client *client.Client

	HostHints         *client.Declared[map[string]HostHint, map[string]HostHint]
	UCIGet            *client.Declared[map[string]any, map[string]any]
	FirewallZones     *client.Declared[map[string]Section, []Zone]
	NetworkInterfaces *client.Declared[[]Network, []Network]
	Login             *client.Declared[string, string]
}

// New declares the procedures on c.
func New(c *client.Client) *API {
	return &API{
		client: c,

		HostHints: client.Declare(c, client.Procedure[map[string]HostHint]{
			Object: "luci",
			Method: "host_hints",
			Expect: &client.Expect[map[string]HostHint]{Default: map[string]HostHint{}},
		}),

		UCIGet: client.Declare(c, client.Procedure[map[string]any]{
			Object: "uci",
			Method: "get",
			Params: []string{"config", "section", "option"},
			Expect: &client.Expect[map[string]any]{Key: "values", Default: map[string]any{}},
		}),

		FirewallZones: client.DeclareFiltered(c, client.Procedure[map[string]Section]{
			Object: "uci",
			Method: "get",
			Params: []string{"config"},
			Expect: &client.Expect[map[string]Section]{Key: "values", Default: map[string]Section{}},
		}, zonesFilter),

		NetworkInterfaces: client.Declare(c, client.Procedure[[]Network]{
			Object: "network.interface",
			Method: "dump",
			Expect: &client.Expect[[]Network]{Key: "interface", Default: []Network{}},
		}),

		Login: client.Declare(c, client.Procedure[string]{
			Object: "session",
			Method: "login",
			Params: []string{"username", "password"},
			Expect: &client.Expect[string]{Key: "ubus_rpc_session"},
		}),
	}
}

// Client returns the client the procedures are declared on.
func (a *API) Client() *client.Client {
	return a.client
}

// zonesFilter keeps the zone sections of a firewall config in file order.
// An optional extra argument restricts the result to the zone of that name.
func zonesFilter(sections map[string]Section, _ message.Args, extra ...any) ([]Zone, error) {
	var only string
	if len(extra) > 0 {
		name, ok := extra[0].(string)
		if !ok {
			return nil, fmt.Errorf("zone name must be a string, got %T", extra[0])
		}
		only = name
	}

	keys := make([]string, 0, len(sections))
	for key, s := range sections {
		if s.Type() == "zone" {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := sections[keys[i]], sections[keys[j]]
		if a.Index() != b.Index() {
			return a.Index() < b.Index()
		}
		return keys[i] < keys[j]
	})

	zones := make([]Zone, 0, len(keys))
	for _, key := range keys {
		z := zoneFromSection(key, sections[key])
		if only != "" && z.Name != only {
			continue
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func zoneFromSection(key string, s Section) Zone {
	name := s.String("name")
	if name == "" {
		name = key
	}
	return Zone{
		Name:     name,
		Section:  key,
		Networks: s.List("network"),
		Input:    s.String("input"),
		Output:   s.String("output"),
		Forward:  s.String("forward"),
		Masq:     s.String("masq") == "1",
	}
}

// Authenticate logs in and switches the client to the new session. Calls
// issued before it returns keep the old session.
func (a *API) Authenticate(ctx context.Context, username, password string) (string, error) {
	sid, err := a.Login.Call(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("logging in as %s: %w", username, err)
	}
	if sid == "" {
		return "", ErrLoginFailed
	}
	a.client.SetSessionID(sid)
	return sid, nil
}

// Zones returns the firewall zones, or only the named one.
func (a *API) Zones(ctx context.Context, name ...string) ([]Zone, error) {
	args := []any{"firewall"}
	if len(name) > 0 {
		args = append(args, name[0])
	}
	return a.FirewallZones.Call(ctx, args...)
}
