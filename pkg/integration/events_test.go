package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostCreated_FanOutByPriority(t *testing.T) {
	ctx := newTestContext()
	var order []string

	OnPostCreated(ctx.Hooks, PrioritySocial, func(c context.Context, ev PostCreated) {
		order = append(order, "social")
	})
	OnPostCreated(ctx.Hooks, PriorityFeaturedImage, func(c context.Context, ev PostCreated) {
		order = append(order, "image")
		assert.Equal(t, int64(12), ev.PostID)
		assert.Equal(t, "Title", ev.Title)
	})
	OnPostCreated(ctx.Hooks, PrioritySEO, func(c context.Context, ev PostCreated) {
		order = append(order, "seo")
	})

	FirePostCreated(context.Background(), ctx.Hooks, PostCreated{PostID: 12, Title: "Title", Content: "Body"})

	assert.Equal(t, []string{"image", "seo", "social"}, order)
}

func TestPostCreated_SharedPriorityKeepsSubscribeOrder(t *testing.T) {
	ctx := newTestContext()
	var order []string
	for _, id := range []string{"facebook", "twitter"} {
		id := id
		OnPostCreated(ctx.Hooks, PrioritySocial, func(c context.Context, ev PostCreated) {
			order = append(order, id)
		})
	}

	FirePostCreated(context.Background(), ctx.Hooks, PostCreated{PostID: 1})

	assert.Equal(t, []string{"facebook", "twitter"}, order)
}

func TestPostCreated_OnlyEnabledSubscribers(t *testing.T) {
	ctx := newTestContext()
	m := NewManager(ctx)

	var seen []string
	subscriber := func(id string, enabled bool) {
		ti := newTestIntegration(id, Settings{"enabled": enabled}, ctx)
		m.Register(&subscribingIntegration{testIntegration: ti, ctx: ctx, seen: &seen})
	}
	subscriber("on", true)
	subscriber("off", false)

	ctx.Hooks.DoAction(context.Background(), HookInit, nil)
	FirePostCreated(context.Background(), ctx.Hooks, PostCreated{PostID: 1})

	assert.Equal(t, []string{"on"}, seen)
}

func TestPostCreated_PointerPayloadAndForeignPayload(t *testing.T) {
	ctx := newTestContext()
	calls := 0
	OnPostCreated(ctx.Hooks, 10, func(c context.Context, ev PostCreated) { calls++ })

	ctx.Hooks.DoAction(context.Background(), HookPostCreated, &PostCreated{PostID: 1})
	ctx.Hooks.DoAction(context.Background(), HookPostCreated, (*PostCreated)(nil))
	ctx.Hooks.DoAction(context.Background(), HookPostCreated, "not an event")

	assert.Equal(t, 1, calls)
}

type subscribingIntegration struct {
	*testIntegration
	ctx  *Context
	seen *[]string
}

func (s *subscribingIntegration) Init() {
	OnPostCreated(s.ctx.Hooks, 10, func(c context.Context, ev PostCreated) {
		*s.seen = append(*s.seen, s.ID())
	})
}
