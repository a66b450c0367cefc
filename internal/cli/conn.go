package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"luci-rpc/client"
	"luci-rpc/loadbalance"
	"luci-rpc/middleware"
	"luci-rpc/registry"
	"luci-rpc/transport"

	"github.com/rs/zerolog/log"
)

// conn is a configured client plus the registry it was resolved from.
type conn struct {
	client   *client.Client
	registry registry.Registry // nil without etcd
	balancer loadbalance.Balancer
	close    func()
}

// dial builds a client from cfg. With etcd endpoints configured the base URL
// is discovered for cfg.Router instead of taken from the config. metrics may
// be nil.
func dial(ctx context.Context, metrics *middleware.Metrics) (*conn, error) {
	opts := []client.Option{
		client.WithSessionID(cfg.SessionID),
		client.WithTimeout(cfg.Timeout()),
		client.WithLogger(log.Logger),
		client.WithMiddleware(middleware.LoggingMiddleware(log.Logger)),
	}
	if cfg.RateLimit.PerSecond > 0 {
		opts = append(opts, client.WithMiddleware(
			middleware.RateLimitMiddleware(cfg.RateLimit.PerSecond, max(cfg.RateLimit.Burst, 1))))
	}
	if metrics != nil {
		opts = append(opts, client.WithMiddleware(middleware.MetricsMiddleware(metrics)))
	}

	var topts []transport.Option
	if cfg.Fingerprint != "" {
		topts = append(topts, transport.WithFingerprint(cfg.Fingerprint))
	}
	opts = append(opts, client.WithTransport(transport.NewHTTPTransport(topts...)))

	cn := &conn{close: func() {}}
	url := cfg.BaseURL
	if len(cfg.Etcd) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.Etcd)
		if err != nil {
			return nil, fmt.Errorf("connecting to etcd: %w", err)
		}
		bal, err := loadbalance.New(cfg.Balancer)
		if err != nil {
			reg.Close()
			return nil, err
		}
		dctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		url, err = client.Discover(dctx, reg, cfg.Router, bal, cfg.SessionID)
		cancel()
		if err != nil {
			reg.Close()
			return nil, err
		}
		log.Debug().Str("router", cfg.Router).Str("url", url).Str("balancer", bal.Name()).Msg("discovered endpoint")

		cn.registry = reg
		cn.balancer = bal
		cn.close = func() { reg.Close() }
	}
	opts = append(opts, client.WithBaseURL(url))

	cn.client = client.New(opts...)
	return cn, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
