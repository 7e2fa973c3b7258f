package integration

import (
	"context"
	"errors"

	"autoblog/internal/hooks"
	"autoblog/internal/options"

	"go.uber.org/zap"
)

// testIntegration embeds Base and counts lifecycle calls.
type testIntegration struct {
	*Base
	inits       int
	activates   int
	deactivates int
	fields      []Field
}

func newTestIntegration(id string, defaults Settings, ctx *Context) *testIntegration {
	ti := &testIntegration{}
	ti.Base = NewBase(Metadata{
		ID:          id,
		Name:        "Test " + id,
		Description: "Integration used in tests",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "admin-generic",
		Category:    CategoryAutomation,
	}, defaults, ctx)
	ti.Bind(ti)
	return ti
}

func (t *testIntegration) Init()         { t.inits++ }
func (t *testIntegration) OnActivate()   { t.activates++ }
func (t *testIntegration) OnDeactivate() { t.deactivates++ }

func (t *testIntegration) SettingsFields() []Field { return t.fields }

// oddCategory reports a category outside the taxonomy.
type oddCategory struct {
	*testIntegration
}

func (o *oddCategory) Category() Category { return "nonexistent" }

// failingStore fails writes and optionally reads.
type failingStore struct {
	*options.Memory
	failGet bool
	failSet bool
}

var errStore = errors.New("store unavailable")

func (f *failingStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	if f.failGet {
		return nil, false, errStore
	}
	return f.Memory.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value map[string]any) error {
	if f.failSet {
		return errStore
	}
	return f.Memory.Set(ctx, key, value)
}

func newTestContext() *Context {
	logger := zap.NewNop()
	return &Context{
		Hooks:   hooks.New(logger, nil),
		Options: options.NewMemory(),
		Logger:  logger,
	}
}
