// Package site assembles one request scope: the hook registry, the
// pseudo-cron, the route table and the lazily built integration manager,
// on top of the long-lived stores shared by every scope.
package site

import (
	"context"
	"sync"

	"autoblog/internal/clock"
	"autoblog/internal/cron"
	"autoblog/internal/hooks"
	"autoblog/internal/httpclient"
	"autoblog/internal/knowledge"
	"autoblog/internal/metrics"
	"autoblog/internal/postgen"
	"autoblog/internal/posts"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"go.uber.org/zap"
)

// Extension installs third-party code into a fresh scope before it boots.
// Extensions usually add a HookRegisterIntegrations action.
type Extension func(hooks host.Hooks)

// Deps are the process-wide services shared by every scope.
type Deps struct {
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Options   host.OptionStore
	Posts     posts.Store
	Media     host.MediaLibrary
	AI        host.TextGenerator
	Knowledge knowledge.Searcher
	HTTP      *httpclient.Client
	Plugins   host.PluginDetector

	// Extensions run against every new scope.
	Extensions []Extension

	// Builtins overrides the global builtin registry when non-nil.
	Builtins []integration.BuiltinInfo
}

// Site is one request scope. It is used by a single goroutine.
type Site struct {
	deps      Deps
	logger    *zap.Logger
	hooks     *hooks.Registry
	cron      *cron.Scheduler
	routes    *Routes
	generator *postgen.Generator
	ctx       *integration.Context

	managerOnce sync.Once
	manager     *integration.Manager
	bootOnce    sync.Once
}

// New creates a scope. Nothing is loaded until Integrations or Boot is
// called.
func New(deps Deps) *Site {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewReal()
	}
	if deps.Plugins == nil {
		deps.Plugins = NewStaticPlugins()
	}

	s := &Site{
		deps:   deps,
		logger: deps.Logger.Named("site"),
		routes: NewRoutes(),
	}
	s.hooks = hooks.New(deps.Logger, deps.Metrics)
	s.cron = cron.New(deps.Options, s.hooks, deps.Logger, deps.Metrics)
	s.generator = postgen.New(deps.AI, deps.Posts, s.hooks, deps.Knowledge, deps.Logger, deps.Metrics)

	s.ctx = &integration.Context{
		Hooks:     s.hooks,
		Options:   deps.Options,
		Cron:      s.cron,
		Posts:     deps.Posts,
		Media:     deps.Media,
		AI:        deps.AI,
		Generator: s.generator,
		Routes:    s.routes,
		Plugins:   deps.Plugins,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	// Typed nils would defeat the integrations' nil checks.
	if deps.HTTP != nil {
		s.ctx.HTTP = deps.HTTP
	}
	if deps.Metrics != nil {
		s.ctx.Metrics = deps.Metrics
	}

	for _, ext := range deps.Extensions {
		ext(s.hooks)
	}
	return s
}

// Hooks returns the scope's hook registry.
func (s *Site) Hooks() *hooks.Registry { return s.hooks }

// Cron returns the scope's pseudo-cron.
func (s *Site) Cron() *cron.Scheduler { return s.cron }

// Routes returns the integration routes registered in this scope.
func (s *Site) Routes() *Routes { return s.routes }

// Generator returns the post generator.
func (s *Site) Generator() *postgen.Generator { return s.generator }

// Posts returns the post store.
func (s *Site) Posts() posts.Store { return s.deps.Posts }

// Context returns the dependencies handed to integrations.
func (s *Site) Context() *integration.Context { return s.ctx }

// Integrations returns the manager, constructing it on first use.
func (s *Site) Integrations() *integration.Manager {
	s.managerOnce.Do(func() {
		builtins := s.deps.Builtins
		if builtins == nil {
			builtins = integration.Builtins()
		}
		s.manager = integration.NewManager(s.ctx, builtins...)
		s.logger.Debug("Integration manager created", zap.Int("integrations", len(s.manager.All())))
	})
	return s.manager
}

// Boot fires plugins_loaded and init once. External integrations register
// during plugins_loaded and enabled integrations initialize during init.
func (s *Site) Boot(ctx context.Context) {
	s.bootOnce.Do(func() {
		s.Integrations()
		s.hooks.DoAction(ctx, integration.HookPluginsLoaded, nil)
		s.hooks.DoAction(ctx, integration.HookInit, nil)
	})
}

// SpawnCron runs due pseudo-cron events.
func (s *Site) SpawnCron(ctx context.Context) (int, error) {
	return s.cron.Spawn(ctx, s.deps.Clock.Now())
}
