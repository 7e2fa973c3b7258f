// Package hooks implements the host action/filter system.
//
// Callbacks run synchronously in the caller's goroutine, lowest priority
// first and in registration order within a priority. A panicking callback is
// not recovered: it aborts the remaining callbacks and propagates to the
// caller of DoAction.
package hooks

import (
	"context"
	"sort"
	"sync"

	"autoblog/internal/metrics"
	"autoblog/pkg/host"

	"go.uber.org/zap"
)

type kind int

const (
	kindAction kind = iota
	kindFilter
)

type callback struct {
	id       uint64
	priority int
	kind     kind
	action   host.ActionFunc
	filter   host.FilterFunc
}

// Registry implements host.Hooks.
type Registry struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	nextID    uint64
	callbacks map[string][]callback
	fired     map[string]int
}

var _ host.Hooks = (*Registry)(nil)

// New creates an empty registry.
func New(logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger.Named("hooks"),
		metrics:   m,
		callbacks: make(map[string][]callback),
		fired:     make(map[string]int),
	}
}

// AddAction registers fn for the action name.
func (r *Registry) AddAction(name string, fn host.ActionFunc, priority int) host.HookHandle {
	return r.add(name, callback{priority: priority, kind: kindAction, action: fn})
}

// AddFilter registers fn for the filter name.
func (r *Registry) AddFilter(name string, fn host.FilterFunc, priority int) host.HookHandle {
	return r.add(name, callback{priority: priority, kind: kindFilter, filter: fn})
}

func (r *Registry) add(name string, cb callback) host.HookHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	cb.id = r.nextID

	list := append(r.callbacks[name], cb)
	// Stable sort keeps registration order within a priority.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority < list[j].priority
	})
	r.callbacks[name] = list

	return host.HookHandle{Name: name, ID: cb.id}
}

// RemoveAction removes the callback identified by h.
func (r *Registry) RemoveAction(h host.HookHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.callbacks[h.Name]
	for i, cb := range list {
		if cb.id == h.ID {
			r.callbacks[h.Name] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the callbacks so they can run without the lock held and
// may add or remove hooks themselves.
func (r *Registry) snapshot(name string, k kind) []callback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []callback
	for _, cb := range r.callbacks[name] {
		if cb.kind == k {
			out = append(out, cb)
		}
	}
	return out
}

// DoAction runs every action callback registered for name.
func (r *Registry) DoAction(ctx context.Context, name string, payload any) {
	r.mu.Lock()
	r.fired[name]++
	r.mu.Unlock()

	r.metrics.HookDispatched(name)

	callbacks := r.snapshot(name, kindAction)
	if len(callbacks) > 0 {
		r.logger.Debug("Dispatching action",
			zap.String("hook", name),
			zap.Int("callbacks", len(callbacks)))
	}
	for _, cb := range callbacks {
		cb.action(ctx, payload)
	}
}

// DidAction reports how many times name has fired.
func (r *Registry) DidAction(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fired[name]
}

// HasAction reports whether any action or filter is registered for name.
func (r *Registry) HasAction(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks[name]) > 0
}

// ApplyFilters passes value through every filter registered for name.
func (r *Registry) ApplyFilters(ctx context.Context, name string, value any) any {
	for _, cb := range r.snapshot(name, kindFilter) {
		value = cb.filter(ctx, value)
	}
	return value
}
