// Package loadbalance chooses which endpoint of a router a client talks to.
//
// Three strategies are implemented:
//   - RoundRobin:      endpoints of equal standing
//   - WeightedRandom:  prefer one path (e.g. wired management LAN) over another
//   - ConsistentHash:  keep a session on the endpoint that issued it
package loadbalance

import (
	"errors"
	"fmt"

	"luci-rpc/registry"
)

// ErrNoInstances is returned when there is nothing to pick from.
var ErrNoInstances = errors.New("no instances available")

// Balancer is the interface for load balancing strategies.
type Balancer interface {
	// Pick selects one instance. key is the session id; strategies without
	// affinity ignore it. Must be goroutine-safe.
	Pick(key string, instances []registry.Instance) (*registry.Instance, error)

	// Name returns the strategy name (for logging/config).
	Name() string
}

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case "", "roundrobin":
		return &RoundRobinBalancer{}, nil
	case "weighted":
		return &WeightedRandomBalancer{}, nil
	case "consistenthash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, fmt.Errorf("unknown balancer %q", name)
}
