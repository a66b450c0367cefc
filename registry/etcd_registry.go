package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/luci-rpc/"

// EtcdRegistry implements Registry on etcd v3.
//
//	Key:   /luci-rpc/{router}/{url}
//	Value: JSON-encoded Instance
//
// Registration uses TTL leases so an endpoint that stops being announced
// disappears on its own.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to etcd: %w", err)
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the etcd connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

func routerPrefix(router string) string {
	return keyPrefix + router + "/"
}

// Register stores instance under a lease of ttl seconds and keeps the lease
// alive until ctx ends.
//
// leaseID stays local: several routers may share one EtcdRegistry.
func (r *EtcdRegistry) Register(ctx context.Context, router string, instance Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("granting lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, routerPrefix(router)+instance.URL, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("storing instance: %w", err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("keeping lease alive: %w", err)
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
		log.Debug().Str("router", router).Str("url", instance.URL).Msg("registry lease keepalive stopped")
	}()
	return nil
}

// Deregister removes an endpoint immediately.
func (r *EtcdRegistry) Deregister(ctx context.Context, router string, url string) error {
	_, err := r.client.Delete(ctx, routerPrefix(router)+url)
	return err
}

// Watch re-reads the router's instances on every change under its prefix.
func (r *EtcdRegistry) Watch(ctx context.Context, router string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, routerPrefix(router), clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(ctx, router)
			if err != nil {
				log.Warn().Err(err).Str("router", router).Msg("registry rediscovery failed")
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover lists the instances currently registered for router.
func (r *EtcdRegistry) Discover(ctx context.Context, router string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, routerPrefix(router), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			log.Debug().Str("key", string(kv.Key)).Msg("skipping malformed registry entry")
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}
