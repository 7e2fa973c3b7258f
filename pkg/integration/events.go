package integration

import (
	"context"

	"autoblog/pkg/host"
)

// Well-known hook names.
const (
	// HookPluginsLoaded fires once per request scope after all code is loaded.
	HookPluginsLoaded = "plugins_loaded"

	// HookInit fires once per request scope after plugins_loaded.
	HookInit = "init"

	// HookRegisterIntegrations is the extension point. Its payload is the
	// *Manager; listeners call Register on it.
	HookRegisterIntegrations = "autoblog_register_integrations"

	// HookPostCreated fires after a generated post has been stored.
	// Its payload is a PostCreated value.
	HookPostCreated = "autoblog_post_created"
)

// Subscriber priorities used by the shipped integrations.
const (
	PriorityFeaturedImage = 10
	PrioritySEO           = 20
	PrioritySocial        = 30
)

// PostCreated is the payload of HookPostCreated.
type PostCreated struct {
	PostID  int64  `json:"post_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// FirePostCreated announces a new post to every subscriber.
func FirePostCreated(ctx context.Context, hooks host.Hooks, ev PostCreated) {
	hooks.DoAction(ctx, HookPostCreated, ev)
}

// OnPostCreated subscribes fn to HookPostCreated. Payloads of any other type
// are ignored.
func OnPostCreated(hooks host.Hooks, priority int, fn func(ctx context.Context, ev PostCreated)) host.HookHandle {
	return hooks.AddAction(HookPostCreated, func(ctx context.Context, payload any) {
		switch ev := payload.(type) {
		case PostCreated:
			fn(ctx, ev)
		case *PostCreated:
			if ev != nil {
				fn(ctx, *ev)
			}
		}
	}, priority)
}

// OnRegister subscribes fn to the registration extension point.
func OnRegister(hooks host.Hooks, fn func(ctx context.Context, m *Manager)) host.HookHandle {
	return hooks.AddAction(HookRegisterIntegrations, func(ctx context.Context, payload any) {
		if m, ok := payload.(*Manager); ok && m != nil {
			fn(ctx, m)
		}
	}, host.DefaultPriority)
}
