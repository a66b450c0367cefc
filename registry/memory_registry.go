package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry for static setups and tests.
// TTLs are ignored.
type MemoryRegistry struct {
	mu       sync.Mutex
	routers  map[string]map[string]Instance
	watchers map[string][]chan []Instance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		routers:  make(map[string]map[string]Instance),
		watchers: make(map[string][]chan []Instance),
	}
}

func (m *MemoryRegistry) Register(ctx context.Context, router string, instance Instance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.routers[router] == nil {
		m.routers[router] = make(map[string]Instance)
	}
	m.routers[router][instance.URL] = instance
	m.notify(router)
	return nil
}

func (m *MemoryRegistry) Deregister(ctx context.Context, router string, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.routers[router], url)
	m.notify(router)
	return nil
}

func (m *MemoryRegistry) Discover(ctx context.Context, router string) ([]Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(router), nil
}

func (m *MemoryRegistry) Watch(ctx context.Context, router string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	m.mu.Lock()
	m.watchers[router] = append(m.watchers[router], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[router]
		for i, w := range watchers {
			if w == ch {
				m.watchers[router] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch
}

// list returns instances sorted by URL; m.mu must be held.
func (m *MemoryRegistry) list(router string) []Instance {
	instances := make([]Instance, 0, len(m.routers[router]))
	for _, inst := range m.routers[router] {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].URL < instances[j].URL
	})
	return instances
}

// notify sends the latest list to each watcher, replacing an unread one;
// m.mu must be held.
func (m *MemoryRegistry) notify(router string) {
	instances := m.list(router)
	for _, ch := range m.watchers[router] {
		select {
		case <-ch:
		default:
		}
		ch <- instances
	}
}
