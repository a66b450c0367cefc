package client

import (
	"context"
	"fmt"

	"luci-rpc/loadbalance"
	"luci-rpc/registry"
)

// Discover picks a base URL for router from reg. sessionID is the balancing
// key, so consistent hashing keeps a session on one endpoint.
func Discover(ctx context.Context, reg registry.Registry, router string, bal loadbalance.Balancer, sessionID string) (string, error) {
	instances, err := reg.Discover(ctx, router)
	if err != nil {
		return "", fmt.Errorf("discovering %s: %w", router, err)
	}

	inst, err := bal.Pick(sessionID, instances)
	if err != nil {
		return "", fmt.Errorf("picking endpoint for %s: %w", router, err)
	}
	return inst.URL, nil
}

// WatchEndpoints keeps the base URL of c on a live endpoint of router until
// ctx ends. The current endpoint is kept while it stays registered; when it
// disappears another one is picked. Calls already sent are not affected.
func (c *Client) WatchEndpoints(ctx context.Context, reg registry.Registry, router string, bal loadbalance.Balancer) {
	updates := reg.Watch(ctx, router)

	go func() {
		for instances := range updates {
			c.repoint(router, instances, bal)
		}
	}()
}

func (c *Client) repoint(router string, instances []registry.Instance, bal loadbalance.Balancer) {
	current := c.BaseURL()
	for _, inst := range instances {
		if inst.URL == current {
			return
		}
	}

	inst, err := bal.Pick(c.SessionID(), instances)
	if err != nil {
		c.logger.Warn().Err(err).Str("router", router).Str("url", current).Msg("no endpoint left, keeping current")
		return
	}

	c.logger.Info().Str("router", router).Str("from", current).Str("to", inst.URL).Msg("switching ubus endpoint")
	c.SetBaseURL(inst.URL)
}
