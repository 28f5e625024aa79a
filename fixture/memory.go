package fixture

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shard represents a single shard of fixtures with its own lock
type shard struct {
	mu   sync.RWMutex
	data map[string]string
}

// Memory is an in-memory fixture store sharded by name hash
type Memory struct {
	shards    []shard
	shardMask uint64
}

// MemoryOption is a function that configures a Memory instance
type MemoryOption func(*Memory)

// WithShardCount sets the number of shards.
// The number is rounded up to the next power of 2.
func WithShardCount(count int) MemoryOption {
	return func(m *Memory) {
		if count > 0 {
			n := nextPowerOf2(count)
			m.shards = make([]shard, n)
			m.shardMask = uint64(n - 1)
		}
	}
}

// NewMemory creates an empty in-memory store with 16 shards
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		shards:    make([]shard, 16),
		shardMask: 15,
	}

	for _, opt := range opts {
		opt(m)
	}

	for i := range m.shards {
		m.shards[i].data = make(map[string]string)
	}
	return m
}

// NewMemoryFrom creates an in-memory store holding the given fixtures
func NewMemoryFrom(fixtures map[string]string) *Memory {
	m := NewMemory()
	for name, text := range fixtures {
		m.Set(name, text)
	}
	return m
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func (m *Memory) shardFor(name string) *shard {
	return &m.shards[xxhash.Sum64String(name)&m.shardMask]
}

// Set stores or replaces a fixture
func (m *Memory) Set(name, text string) {
	sh := m.shardFor(name)
	sh.mu.Lock()
	sh.data[name] = text
	sh.mu.Unlock()
}

// Get returns a fixture and whether it exists
func (m *Memory) Get(name string) (string, bool) {
	sh := m.shardFor(name)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	text, ok := sh.data[name]
	return text, ok
}

// Delete removes fixtures and returns how many existed
func (m *Memory) Delete(names ...string) int {
	deleted := 0
	for _, name := range names {
		sh := m.shardFor(name)
		sh.mu.Lock()
		if _, ok := sh.data[name]; ok {
			delete(sh.data, name)
			deleted++
		}
		sh.mu.Unlock()
	}
	return deleted
}

// Names returns all fixture names in sorted order
func (m *Memory) Names() []string {
	var names []string
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for name := range sh.data {
			names = append(names, name)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored fixtures
func (m *Memory) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}

// Fetch implements Provider
func (m *Memory) Fetch(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, ok := m.Get(name)
	if !ok {
		return "", &NotFoundError{Name: name, Source: "memory"}
	}
	return text, nil
}
