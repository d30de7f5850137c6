// Package cache provides the explicit TTL cache injected into the read
// API. Handlers depend on the interface, never on a package-level
// singleton, so tests can swap in their own implementation.
package cache

import (
	"sync"
	"time"
)

// Cache is a key-value cache with per-entry expiry.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Invalidate(prefix string)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process Cache backed by a mutex-guarded map.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	nowFunc func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
}

// Get returns the cached value for key, or (nil, false) if absent or
// expired. Expired entries are removed on access.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.nowFunc().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.nowFunc().Add(ttl)}
}

// Invalidate removes every entry whose key starts with prefix. An empty
// prefix clears the whole cache.
func (m *Memory) Invalidate(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix == "" {
		m.entries = make(map[string]entry)
		return
	}
	for k := range m.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}
