// Package options provides the host option store backends: in-memory, a YAML
// file, Redis and PostgreSQL.
//
// Every backend implements host.OptionStore. Stored maps are copied on the
// way in and out, so callers never share state with the store.
package options

import (
	"context"
	"sync"

	"autoblog/pkg/host"
)

// Memory is an in-process option store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]map[string]any
}

var _ host.OptionStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]map[string]any)}
}

func (m *Memory) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return cloneMap(v), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = cloneMap(value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Keys returns the stored keys. Useful for tests.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneAny(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneMap(item)
		}
		return out
	default:
		return v
	}
}
