package stores

import "sync"

// memo caches selector results per argument for as long as the input
// version is unchanged.
type memo[K comparable, V any] struct {
	mu      sync.Mutex
	version any
	entries map[K]V
}

func (m *memo[K, V]) get(version any, key K, compute func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil || m.version != version {
		m.entries = make(map[K]V)
		m.version = version
	}
	if v, ok := m.entries[key]; ok {
		return v
	}
	v := compute()
	m.entries[key] = v
	return v
}
