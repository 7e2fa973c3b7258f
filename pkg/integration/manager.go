package integration

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Manager is the registry and lifecycle driver for the integrations of one
// request scope. It never panics; failures are reported as false or nil.
type Manager struct {
	ctx    *Context
	logger *zap.Logger

	mu           sync.RWMutex
	integrations map[string]Integration
	order        []string

	registerOnce sync.Once
	initOnce     sync.Once
}

// NewManager creates a manager, constructs the given builtins and registers
// them. When ctx has hooks, the manager attaches FireRegistration to
// HookPluginsLoaded and InitEnabled to HookInit.
func NewManager(ctx *Context, builtins ...BuiltinInfo) *Manager {
	if ctx == nil {
		ctx = &Context{}
	}
	m := &Manager{
		ctx:          ctx,
		logger:       ctx.logger().Named("integrations"),
		integrations: make(map[string]Integration),
	}

	for _, info := range builtins {
		i, err := info.Factory(ctx)
		if err != nil {
			m.logger.Error("Failed to create builtin integration",
				zap.String("id", info.ID),
				zap.Error(err))
			continue
		}
		if !m.Register(i) {
			m.logger.Warn("Builtin integration not registered", zap.String("id", info.ID))
		}
	}

	if ctx.Hooks != nil {
		ctx.Hooks.AddAction(HookPluginsLoaded, func(c context.Context, _ any) {
			m.FireRegistration(c)
		}, 0)
		ctx.Hooks.AddAction(HookInit, func(c context.Context, _ any) {
			m.InitEnabled()
		}, 0)
	}

	return m
}

// Context returns the dependencies handed to integrations.
func (m *Manager) Context() *Context {
	return m.ctx
}

// Register adds i unless an integration with the same ID is already present.
func (m *Manager) Register(i Integration) bool {
	if i == nil || i.ID() == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := i.ID()
	if _, exists := m.integrations[id]; exists {
		m.logger.Debug("Duplicate integration rejected", zap.String("id", id))
		return false
	}
	m.integrations[id] = i
	m.order = append(m.order, id)
	return true
}

// Unregister removes the integration with id.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.integrations[id]; !exists {
		return false
	}
	delete(m.integrations, id)
	for idx, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:idx], m.order[idx+1:]...)
			break
		}
	}
	return true
}

// Get returns the integration with id, or nil.
func (m *Manager) Get(id string) Integration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.integrations[id]
}

// All returns every integration in registration order.
func (m *Manager) All() []Integration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Integration, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.integrations[id])
	}
	return out
}

// Enabled returns the integrations that report IsEnabled now.
func (m *Manager) Enabled() []Integration {
	var out []Integration
	for _, i := range m.All() {
		if i.IsEnabled() {
			out = append(out, i)
		}
	}
	return out
}

// ByCategory returns the integrations whose resolved category is c.
// Unknown categories resolve to CategoryOther.
func (m *Manager) ByCategory(c Category) []Integration {
	want, _ := ResolveCategory(c)
	var out []Integration
	for _, i := range m.All() {
		if got, _ := ResolveCategory(i.Category()); got == want {
			out = append(out, i)
		}
	}
	return out
}

// EnableIntegration enables the integration with id.
func (m *Manager) EnableIntegration(id string) bool {
	i := m.Get(id)
	if i == nil {
		m.logger.Debug("Enable requested for unknown integration", zap.String("id", id))
		return false
	}
	ok := i.Enable()
	m.ctx.recordToggle(id, "enable", ok)
	return ok
}

// DisableIntegration disables the integration with id.
func (m *Manager) DisableIntegration(id string) bool {
	i := m.Get(id)
	if i == nil {
		m.logger.Debug("Disable requested for unknown integration", zap.String("id", id))
		return false
	}
	ok := i.Disable()
	m.ctx.recordToggle(id, "disable", ok)
	return ok
}

// FireRegistration fires the registration extension point once.
func (m *Manager) FireRegistration(ctx context.Context) {
	if m.ctx.Hooks == nil {
		return
	}
	m.registerOnce.Do(func() {
		m.ctx.Hooks.DoAction(ctx, HookRegisterIntegrations, m)
	})
}

// InitEnabled calls Init on every enabled integration. It runs at most once
// per manager.
func (m *Manager) InitEnabled() {
	m.initOnce.Do(func() {
		for _, i := range m.Enabled() {
			m.logger.Debug("Initializing integration", zap.String("id", i.ID()))
			i.Init()
		}
	})
}

// Summaries returns the Summary of every integration in registration order.
func (m *Manager) Summaries() []Summary {
	all := m.All()
	out := make([]Summary, 0, len(all))
	for _, i := range all {
		out = append(out, Describe(i))
	}
	return out
}

// CategoryGroup is one category section of the integrations list.
type CategoryGroup struct {
	CategoryInfo
	Integrations []Summary `json:"integrations"`
}

// Grouped returns summaries grouped by resolved category in taxonomy order.
// Empty categories are omitted.
func (m *Manager) Grouped() []CategoryGroup {
	byCat := make(map[Category][]Summary)
	for _, s := range m.Summaries() {
		byCat[s.Category] = append(byCat[s.Category], s)
	}

	var out []CategoryGroup
	for _, info := range Categories() {
		if items := byCat[info.Category]; len(items) > 0 {
			out = append(out, CategoryGroup{CategoryInfo: info, Integrations: items})
		}
	}
	return out
}

// RenderPage renders the settings page of the integration with id when it is
// known and has one, and the integrations list otherwise.
func (m *Manager) RenderPage(w io.Writer, id string) error {
	if id != "" {
		if i := m.Get(id); i != nil && i.HasSettingsPage() {
			return i.RenderSettingsPage(w)
		}
	}
	return renderList(w, m.Grouped())
}
