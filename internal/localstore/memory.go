package localstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Background cache refreshes share it with the
// request goroutine, hence the mutex.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.items[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// MemoryPool hands out one Memory per namespace so a device keeps its state
// across requests when no Redis is configured.
type MemoryPool struct {
	mu     sync.Mutex
	stores map[string]*Memory
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{stores: make(map[string]*Memory)}
}

func (p *MemoryPool) Namespace(namespace string) *Memory {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stores[namespace]
	if !ok {
		s = NewMemory()
		p.stores[namespace] = s
	}
	return s
}
