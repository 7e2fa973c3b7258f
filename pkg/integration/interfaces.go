// Package integration provides the integration contract, the reusable Base
// implementation, the builtin factory registry and the Manager that drives
// integration lifecycle for a request scope.
//
// Built-in integrations register a factory from an init() function, so the
// set of built-ins is chosen at compile time by import. Third-party code
// registers instances through the HookRegisterIntegrations extension point.
package integration

import "io"

// Integration is the contract every pluggable module implements.
// The Manager treats all integrations uniformly through this interface.
type Integration interface {
	// ID returns the stable identifier. It is used as the option namespace and
	// the URL slug, so it must be unique, lowercase and hyphenated.
	ID() string
	Name() string
	Description() string
	Version() string
	Author() string
	Icon() string
	Category() Category

	// IsEnabled reports whether the integration is currently enabled.
	IsEnabled() bool

	// Enable persists enabled=true and calls OnActivate when the write succeeded.
	Enable() bool

	// Disable persists enabled=false and calls OnDeactivate when the write succeeded.
	Disable() bool

	// Settings returns the stored settings merged over the declared defaults.
	Settings() Settings

	// UpdateSettings merges values over the current settings and persists them.
	UpdateSettings(values Settings) bool

	// Init is called once per request scope, and only when enabled.
	// Integrations attach their hooks, routes and cron callbacks here.
	Init()

	// OnActivate runs after a successful Enable.
	OnActivate()

	// OnDeactivate runs after a successful Disable.
	OnDeactivate()

	HasSettingsPage() bool
	RenderSettingsPage(w io.Writer) error

	IsBuiltin() bool
}

// Sanitizer is an optional interface for integrations that clean their own
// settings before they are persisted.
type Sanitizer interface {
	SanitizeSettings(s Settings) Settings
}

// FieldProvider is an optional interface for integrations that describe their
// settings form. Integrations implementing it get a settings page from Base.
type FieldProvider interface {
	SettingsFields() []Field
}

// Factory creates a new integration instance from the request-scope context.
type Factory func(ctx *Context) (Integration, error)
