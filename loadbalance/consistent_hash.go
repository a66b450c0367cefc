package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"luci-rpc/registry"
)

// ConsistentHashBalancer maps keys to instances using a hash ring. rpcd
// sessions only exist on the router that created them, so hashing the
// session id keeps every call of a session on the same endpoint as long as
// the endpoint set is stable.
//
// Each instance gets replicas virtual nodes hashed from "{url}#{i}" to spread
// evenly across the ring.
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	ring  []uint32                     // Sorted hash values on the ring
	nodes map[uint32]registry.Instance // Hash value -> instance
	set   string                       // URLs the ring was built from
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.Instance),
	}
}

func (b *ConsistentHashBalancer) add(instance registry.Instance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.URL, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
}

// rebuild resets the ring when the instance set differs from the last one;
// b.mu must be held.
func (b *ConsistentHashBalancer) rebuild(instances []registry.Instance) {
	urls := make([]string, len(instances))
	for i, inst := range instances {
		urls[i] = inst.URL
	}
	sort.Strings(urls)
	set := strings.Join(urls, "\n")
	if set == b.set {
		return
	}

	b.set = set
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]registry.Instance, len(instances)*b.replicas)
	for _, inst := range instances {
		b.add(inst)
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Pick finds the first ring node clockwise from the key's hash.
func (b *ConsistentHashBalancer) Pick(key string, instances []registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild(instances)

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	// Wrap around: past the last node goes to the first
	if idx == len(b.ring) {
		idx = 0
	}

	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistenthash"
}
