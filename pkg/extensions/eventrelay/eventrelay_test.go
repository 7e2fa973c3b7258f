package eventrelay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"autoblog/pkg/host"
	"autoblog/pkg/integration"
	"autoblog/pkg/testutil"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestRegistersThroughExtensionPoint(t *testing.T) {
	env := testutil.NewTestEnv(t)
	Install(env.Ctx.Hooks, &fakeWriter{})

	m := env.Site.Integrations()
	assert.Nil(t, m.Get(ID), "not registered before plugins_loaded")

	env.Boot()
	relay, ok := m.Get(ID).(*Relay)
	require.True(t, ok)
	assert.False(t, relay.IsBuiltin())
	assert.Equal(t, integration.CategoryOther, relay.Category())
	assert.False(t, relay.IsEnabled())
}

func TestPublishesPostCreated(t *testing.T) {
	env := testutil.NewTestEnv(t)
	w := &fakeWriter{}
	Install(env.Ctx.Hooks, w)
	require.NoError(t, env.Options.Set(context.Background(), "integration_"+ID, map[string]any{
		"enabled":         true,
		"topic":           "blog.events",
		"include_content": true,
	}))
	env.Boot()

	id := env.CreatePost(t, "Aeropress Tricks", "Invert it.", host.StatusPublish)
	env.PostCreated(t, id)

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "blog.events", msgs[0].Topic)
	assert.Equal(t, "1", string(msgs[0].Key))

	var got Message
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	assert.Equal(t, EventPostCreated, got.Event)
	assert.Equal(t, id, got.PostID)
	assert.Equal(t, "Aeropress Tricks", got.Title)
	assert.Equal(t, host.StatusPublish, got.Status)
	assert.Equal(t, "https://blog.example.com/1/aeropress-tricks/", got.Permalink)
	assert.Equal(t, "Invert it.", got.Content)
	assert.True(t, testutil.Epoch.Equal(got.OccurredAt))
}

func TestRunsAfterOtherSubscribers(t *testing.T) {
	env := testutil.NewTestEnv(t)
	w := &fakeWriter{}
	Install(env.Ctx.Hooks, w)
	require.NoError(t, env.Options.Set(context.Background(), "integration_"+ID, map[string]any{"enabled": true}))

	integration.OnPostCreated(env.Ctx.Hooks, integration.PrioritySocial, func(ctx context.Context, ev integration.PostCreated) {
		require.NoError(t, env.Posts.SetFeaturedImage(ctx, ev.PostID, "https://img.example.com/a.jpg"))
	})
	env.Boot()

	id := env.CreatePost(t, "Chemex", "body", host.StatusDraft)
	env.PostCreated(t, id)

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, DefaultTopic, msgs[0].Topic)

	var got Message
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	assert.Equal(t, "https://img.example.com/a.jpg", got.FeaturedImage)
	assert.Empty(t, got.Content)
}

func TestWriteErrorIsLogged(t *testing.T) {
	env := testutil.NewTestEnv(t)
	Install(env.Ctx.Hooks, &fakeWriter{err: errors.New("broker down")})
	require.NoError(t, env.Options.Set(context.Background(), "integration_"+ID, map[string]any{"enabled": true}))
	env.Boot()

	id := env.CreatePost(t, "Chemex", "body", host.StatusDraft)
	assert.NotPanics(t, func() { env.PostCreated(t, id) })
}

func TestSanitizeSettings(t *testing.T) {
	r := New(&integration.Context{}, nil)
	got := r.SanitizeSettings(integration.Settings{"topic": "  ", "enabled": "1"})
	assert.Equal(t, DefaultTopic, got.String("topic"))
	assert.Equal(t, true, got["enabled"])
}

func TestNewKafkaWriter(t *testing.T) {
	_, err := NewKafkaWriter(nil)
	assert.Error(t, err)

	w, err := NewKafkaWriter([]string{"localhost:9092"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
