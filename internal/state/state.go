// Package state provides the keyed store behind the engine's mutable state:
// pending order documents, seen-item sets, the product reference table, and
// the product-to-orders index all live behind KV under distinct key prefixes.
package state

import (
	"fmt"
	"sync"
)

// KV abstracts the state backend. Values are opaque encoded records; callers
// own the encoding. Per-key reads and writes must be safe under concurrent
// access across different keys.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, val []byte) error
	Delete(key string) error
	// Scan visits every key with the given prefix. Iteration order is
	// unspecified; the callback must not mutate the store.
	Scan(prefix string, fn func(key string, val []byte) error) error
}

// InMemoryKV is a simple thread-safe map store, used by tests and by
// deployments that accept rebuild-from-stream on restart.
type InMemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{data: make(map[string][]byte)}
}

func (s *InMemoryKV) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := append([]byte(nil), v...)
	return out, true, nil
}

func (s *InMemoryKV) Put(key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), val...)
	return nil
}

func (s *InMemoryKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemoryKV) Scan(prefix string, fn func(key string, val []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		if err := fn(k, append([]byte(nil), v...)); err != nil {
			return fmt.Errorf("scan callback failed: %w", err)
		}
	}
	return nil
}
