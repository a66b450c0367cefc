// Package registry keeps track of the ubus endpoints a client may talk to.
//
// A router is announced under its name with one instance per reachable
// endpoint URL (for example the LAN and the management address of the same
// device, or the two members of an HA pair).
package registry

import "context"

// Instance is one ubus endpoint of a router.
type Instance struct {
	URL     string `json:"url"`
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, router string, instance Instance, ttl int64) error
	Deregister(ctx context.Context, router string, url string) error
	Discover(ctx context.Context, router string) ([]Instance, error)
	// Watch emits the full instance list after every change until ctx ends.
	Watch(ctx context.Context, router string) <-chan []Instance
}
