package integration

import (
	"time"

	"autoblog/pkg/host"

	"go.uber.org/zap"
)

// Context provides dependencies to integrations during construction.
// It wraps the host services of one request scope in a single struct
// for cleaner factory signatures.
//
// Any field other than Hooks, Options and Logger may be nil in tests;
// integrations that need a service should check before use.
type Context struct {
	// Hooks is the request-scope action/filter registry.
	Hooks host.Hooks

	// Options persists integration settings.
	Options host.OptionStore

	// Cron schedules recurring work on the host's pseudo-cron.
	Cron host.Scheduler

	// Posts gives access to posts and post metadata.
	Posts host.PostStore

	// Media stores downloaded images.
	Media host.MediaLibrary

	// AI generates text.
	AI host.TextGenerator

	// Generator creates posts and fires HookPostCreated.
	Generator host.PostGenerator

	// Routes exposes HTTP endpoints under the integration's namespace.
	Routes host.Router

	// Plugins reports which host plugins are active.
	Plugins host.PluginDetector

	// HTTP is the shared outbound client for third-party APIs.
	HTTP host.HTTPClient

	// Clock is the time source. Nil means wall-clock time.
	Clock host.Clock

	// Logger is a structured logger. Integrations get a named child from Base.
	Logger *zap.Logger

	// Metrics records framework counters. Nil disables metrics.
	Metrics host.Metrics
}

// Now returns the current time from the context clock.
func (c *Context) Now() time.Time {
	if c == nil || c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *Context) recordToggle(id, action string, ok bool) {
	if c == nil || c.Metrics == nil {
		return
	}
	c.Metrics.IntegrationToggled(id, action, ok)
}

func (c *Context) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
