package site

import (
	"sync"

	"autoblog/pkg/host"
)

// StaticPlugins reports a fixed set of host plugins as active.
type StaticPlugins struct {
	mu     sync.RWMutex
	active map[string]bool
}

var _ host.PluginDetector = (*StaticPlugins)(nil)

// NewStaticPlugins creates a detector with the given plugins active.
func NewStaticPlugins(active ...string) *StaticPlugins {
	p := &StaticPlugins{active: make(map[string]bool)}
	for _, name := range active {
		p.active[name] = true
	}
	return p
}

func (p *StaticPlugins) IsActive(plugin string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active[plugin]
}

// Activate marks plugin active.
func (p *StaticPlugins) Activate(plugin string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[plugin] = true
}

// Deactivate marks plugin inactive.
func (p *StaticPlugins) Deactivate(plugin string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, plugin)
}
