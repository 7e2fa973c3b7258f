package integration

import (
	"context"
	"io"
	"net/url"
	"time"

	"autoblog/pkg/host"

	"go.uber.org/zap"
)

// OptionPrefix namespaces integration settings in the option store.
const OptionPrefix = "integration_"

// SettingsPagePath is the admin page that renders integration settings.
const SettingsPagePath = "/admin/integrations"

const optionTimeout = 5 * time.Second

// Metadata is the static description of an integration.
type Metadata struct {
	ID          string
	Name        string
	Description string
	Version     string
	Author      string
	Icon        string
	Category    Category
	Builtin     bool
}

// Base implements the parts of Integration shared by every integration:
// settings persistence merged over defaults, enable/disable bookkeeping and
// no-op lifecycle hooks. Concrete integrations embed *Base, call Bind with
// themselves and override what they need.
type Base struct {
	meta      Metadata
	defaults  Settings
	store     host.OptionStore
	optionKey string
	logger    *zap.Logger
	self      Integration
}

// NewBase creates a Base for meta with the declared default settings.
func NewBase(meta Metadata, defaults Settings, ctx *Context) *Base {
	var store host.OptionStore
	if ctx != nil {
		store = ctx.Options
	}
	return &Base{
		meta:      meta,
		defaults:  defaults.Clone(),
		store:     store,
		optionKey: OptionPrefix + meta.ID,
		logger:    ctx.logger().Named("integration." + meta.ID),
	}
}

// Bind records the embedding integration so that Base dispatches lifecycle
// callbacks and optional interfaces through its overrides.
func (b *Base) Bind(self Integration) {
	b.self = self
}

func (b *Base) owner() Integration {
	if b.self != nil {
		return b.self
	}
	return b
}

// Logger returns the integration's named logger.
func (b *Base) Logger() *zap.Logger {
	return b.logger
}

// OptionKey returns the option store key holding this integration's settings.
func (b *Base) OptionKey() string {
	return b.optionKey
}

// Defaults returns a copy of the declared default settings.
func (b *Base) Defaults() Settings {
	return b.defaults.Clone()
}

func (b *Base) ID() string          { return b.meta.ID }
func (b *Base) Name() string        { return b.meta.Name }
func (b *Base) Description() string { return b.meta.Description }
func (b *Base) Version() string     { return b.meta.Version }
func (b *Base) Author() string      { return b.meta.Author }
func (b *Base) Icon() string        { return b.meta.Icon }
func (b *Base) Category() Category  { return b.meta.Category }
func (b *Base) IsBuiltin() bool     { return b.meta.Builtin }

// IsEnabled reports the enabled flag from the effective settings.
func (b *Base) IsEnabled() bool {
	return b.Settings().Bool("enabled")
}

// Enable persists enabled=true and then calls OnActivate. OnActivate is not
// called when the write fails.
func (b *Base) Enable() bool {
	if !b.UpdateSettings(Settings{"enabled": true}) {
		b.logger.Warn("Failed to persist enabled state")
		return false
	}
	b.owner().OnActivate()
	b.logger.Info("Integration enabled")
	return true
}

// Disable persists enabled=false and then calls OnDeactivate. OnDeactivate is
// not called when the write fails.
func (b *Base) Disable() bool {
	if !b.UpdateSettings(Settings{"enabled": false}) {
		b.logger.Warn("Failed to persist disabled state")
		return false
	}
	b.owner().OnDeactivate()
	b.logger.Info("Integration disabled")
	return true
}

// Settings returns the persisted settings merged over the defaults.
// A missing or unreadable option yields the defaults.
func (b *Base) Settings() Settings {
	if b.store == nil {
		return b.defaults.Clone()
	}

	ctx, cancel := context.WithTimeout(context.Background(), optionTimeout)
	defer cancel()

	stored, _, err := b.store.Get(ctx, b.optionKey)
	if err != nil {
		b.logger.Warn("Failed to load settings, using defaults", zap.Error(err))
		stored = nil
	}
	return Merge(b.defaults, stored)
}

// UpdateSettings merges values over the effective settings, sanitizes the
// result when the integration implements Sanitizer, and persists it.
func (b *Base) UpdateSettings(values Settings) bool {
	if b.store == nil {
		return false
	}

	merged := Merge(b.Settings(), values)
	if s, ok := b.owner().(Sanitizer); ok {
		merged = s.SanitizeSettings(merged)
	}

	ctx, cancel := context.WithTimeout(context.Background(), optionTimeout)
	defer cancel()

	if err := b.store.Set(ctx, b.optionKey, merged); err != nil {
		b.logger.Error("Failed to save settings", zap.Error(err))
		return false
	}
	return true
}

func (b *Base) Init()         {}
func (b *Base) OnActivate()   {}
func (b *Base) OnDeactivate() {}

// HasSettingsPage reports whether the integration describes a settings form.
func (b *Base) HasSettingsPage() bool {
	fp, ok := b.owner().(FieldProvider)
	return ok && len(fp.SettingsFields()) > 0
}

// RenderSettingsPage renders the settings form described by SettingsFields,
// or a plain listing of every setting when no fields are declared.
func (b *Base) RenderSettingsPage(w io.Writer) error {
	var fields []Field
	if fp, ok := b.owner().(FieldProvider); ok {
		fields = fp.SettingsFields()
	}
	return renderSettingsForm(w, Describe(b.owner()), fields, b.owner().Settings())
}

// Summary describes the integration for listings and API clients.
func (b *Base) Summary() Summary {
	return Describe(b.owner())
}

// Summary is the serializable view of an integration.
type Summary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Version       string   `json:"version"`
	Author        string   `json:"author"`
	Icon          string   `json:"icon"`
	Category      Category `json:"category"`
	CategoryLabel string   `json:"category_label"`
	CategoryIcon  string   `json:"category_icon"`
	Enabled       bool     `json:"enabled"`
	Builtin       bool     `json:"builtin"`
	HasSettings   bool     `json:"has_settings"`
	SettingsURL   string   `json:"settings_url"`
}

// Describe builds the Summary of any integration, whether or not it embeds Base.
func Describe(i Integration) Summary {
	cat, meta := ResolveCategory(i.Category())
	return Summary{
		ID:            i.ID(),
		Name:          i.Name(),
		Description:   i.Description(),
		Version:       i.Version(),
		Author:        i.Author(),
		Icon:          i.Icon(),
		Category:      cat,
		CategoryLabel: meta.Label,
		CategoryIcon:  meta.Icon,
		Enabled:       i.IsEnabled(),
		Builtin:       i.IsBuiltin(),
		HasSettings:   i.HasSettingsPage(),
		SettingsURL:   SettingsURL(i.ID()),
	}
}

// SettingsURL returns the admin page URL for an integration's settings.
func SettingsURL(id string) string {
	return SettingsPagePath + "?integration=" + url.QueryEscape(id)
}
