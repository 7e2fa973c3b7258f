package postgen

import (
	"context"
	"errors"
	"testing"

	"autoblog/internal/clock"
	"autoblog/internal/hooks"
	"autoblog/internal/knowledge"
	"autoblog/internal/metrics"
	"autoblog/internal/posts"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAI struct {
	text   string
	err    error
	prompt host.Prompt
}

func (f *fakeAI) Generate(ctx context.Context, p host.Prompt) (string, error) {
	f.prompt = p
	return f.text, f.err
}

type failingSearch struct{}

func (failingSearch) Search(ctx context.Context, query string, limit int) ([]knowledge.Result, error) {
	return nil, errors.New("index offline")
}

type fixture struct {
	gen     *Generator
	ai      *fakeAI
	posts   *posts.Memory
	hooks   *hooks.Registry
	metrics *metrics.Metrics
	events  []integration.PostCreated
}

func newFixture(t *testing.T, text string, kb knowledge.Searcher) *fixture {
	t.Helper()
	f := &fixture{
		ai:      &fakeAI{text: text},
		posts:   posts.NewMemory("https://blog.example.com", clock.NewReal()),
		metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	f.hooks = hooks.New(zap.NewNop(), f.metrics)
	integration.OnPostCreated(f.hooks, 10, func(ctx context.Context, ev integration.PostCreated) {
		f.events = append(f.events, ev)
	})
	f.gen = New(f.ai, f.posts, f.hooks, kb, zap.NewNop(), f.metrics)
	return f
}

func TestGenerate_StoresPostAndFiresEvent(t *testing.T) {
	f := newFixture(t, "# Cold Brew at Home\n\nSteep for 18 hours.", nil)

	id, err := f.gen.Generate(context.Background(), host.GenerateRequest{
		Topic:    "cold brew",
		Status:   host.StatusPublish,
		AuthorID: 3,
		Category: "coffee",
	})
	require.NoError(t, err)

	p, err := f.posts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Cold Brew at Home", p.Title)
	assert.Equal(t, "Steep for 18 hours.", p.Content)
	assert.Equal(t, host.StatusPublish, p.Status)
	assert.Equal(t, int64(3), p.AuthorID)
	assert.Equal(t, "coffee", p.Category)

	require.Len(t, f.events, 1)
	assert.Equal(t, integration.PostCreated{PostID: id, Title: "Cold Brew at Home", Content: "Steep for 18 hours."}, f.events[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PostsGenerated.WithLabelValues("success")))
}

func TestGenerate_DefaultsToDraftAndAppliesFilters(t *testing.T) {
	f := newFixture(t, "Just a body.", nil)
	f.hooks.AddFilter(FilterTitle, func(ctx context.Context, v any) any { return v.(string) + " (draft)" }, 10)

	id, err := f.gen.Generate(context.Background(), host.GenerateRequest{Topic: "  espresso  "})
	require.NoError(t, err)

	p, err := f.posts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "espresso (draft)", p.Title)
	assert.Equal(t, "Just a body.", p.Content)
	assert.Equal(t, host.StatusDraft, p.Status)
}

func TestGenerate_Failures(t *testing.T) {
	f := newFixture(t, "", nil)

	_, err := f.gen.Generate(context.Background(), host.GenerateRequest{Topic: " "})
	assert.ErrorIs(t, err, ErrEmptyTopic)

	f.ai.err = errors.New("throttled")
	_, err = f.gen.Generate(context.Background(), host.GenerateRequest{Topic: "x"})
	assert.ErrorContains(t, err, "throttled")

	assert.Empty(t, f.events)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PostsGenerated.WithLabelValues("failure")))
}

func TestGenerate_UsesKnowledgeBase(t *testing.T) {
	kb := knowledge.NewMemory()
	require.NoError(t, kb.Add(context.Background(), knowledge.Document{
		ID: "ratio", Title: "Brew ratio", Content: "Use 1:16 coffee to water.",
	}))
	f := newFixture(t, "# T\nbody", kb)

	_, err := f.gen.Generate(context.Background(), host.GenerateRequest{Topic: "coffee ratio", UseKnowledgeBase: true})
	require.NoError(t, err)
	assert.Contains(t, f.ai.prompt.User, "## Brew ratio")
	assert.Contains(t, f.ai.prompt.User, "1:16")

	_, err = f.gen.Generate(context.Background(), host.GenerateRequest{Topic: "coffee ratio"})
	require.NoError(t, err)
	assert.NotContains(t, f.ai.prompt.User, "Brew ratio")
}

func TestGenerate_KnowledgeFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "# T\nbody", failingSearch{})

	_, err := f.gen.Generate(context.Background(), host.GenerateRequest{Topic: "x", UseKnowledgeBase: true})
	require.NoError(t, err)
	assert.NotContains(t, f.ai.prompt.User, "reference material")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(host.GenerateRequest{Topic: "tea"}, "")
	assert.Contains(t, p.User, "Write a blog post about: tea")
	assert.Contains(t, p.User, "Tone: informative")
	assert.Contains(t, p.User, "about 800 words")
	assert.Equal(t, 1600, p.MaxTokens)

	p = BuildPrompt(host.GenerateRequest{Topic: "tea", Tone: "playful", WordCount: 300}, "## Ref\ntext")
	assert.Contains(t, p.User, "Tone: playful")
	assert.Contains(t, p.User, "## Ref\ntext")
	assert.Equal(t, 600, p.MaxTokens)
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTitle string
		wantBody  string
	}{
		{"heading", "# Hello\n\nBody text", "Hello", "Body text"},
		{"h2 heading", "## Hello\nBody", "Hello", "Body"},
		{"title prefix", "Title: \"Quoted\"\nBody", "Quoted", "Body"},
		{"bold heading", "# **Bold**\nBody", "Bold", "Body"},
		{"no title", "Plain first line\nSecond", "fallback", "Plain first line\nSecond"},
		{"empty heading", "#\nBody", "fallback", "#\nBody"},
		{"title only", "# Only", "Only", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := SplitTitle(tt.text, "fallback")
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
