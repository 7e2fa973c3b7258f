package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"autoblog/internal/clock"
	"autoblog/internal/httpclient"
	"autoblog/internal/media"
	"autoblog/internal/options"
	"autoblog/internal/posts"
	"autoblog/internal/site"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"go.uber.org/zap"
)

// Epoch is the mock clock's starting time in every TestEnv.
var Epoch = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

// TestEnv provides a complete in-memory request scope for integration
// tests. It creates real internal implementations but exposes them via pkg
// interfaces where integrations see them.
type TestEnv struct {
	Site    *site.Site
	Ctx     *integration.Context
	Server  *MockAPIServer
	AI      *ScriptedAI
	Plugins *site.StaticPlugins
	Clock   *clock.Mock
	Logger  *zap.Logger

	Options *options.Memory
	Posts   *posts.Memory
	Media   *media.Local
}

// NewTestEnv creates a TestEnv whose scope builds only the given builtins.
// The mock API server is stopped when the test ends.
//
// Example usage:
//
//	env := testutil.NewTestEnv(t, facebookBuiltin)
//	fb := env.Site.Integrations().Get("facebook")
func NewTestEnv(t testing.TB, builtins ...integration.BuiltinInfo) *TestEnv {
	t.Helper()
	logger := zap.NewNop()

	server := NewMockAPIServer()
	t.Cleanup(server.Stop)

	mock := clock.NewMock(Epoch)
	env := &TestEnv{
		Server:  server,
		AI:      &ScriptedAI{},
		Plugins: site.NewStaticPlugins(),
		Clock:   mock,
		Logger:  logger,
		Options: options.NewMemory(),
		Posts:   posts.NewMemory("https://blog.example.com", mock),
		Media:   media.NewLocal(t.TempDir(), "https://blog.example.com/media", mock),
	}

	if builtins == nil {
		builtins = []integration.BuiltinInfo{}
	}
	env.Site = site.New(site.Deps{
		Logger:  logger,
		Clock:   mock,
		Options: env.Options,
		Posts:   env.Posts,
		Media:   env.Media,
		AI:      env.AI,
		Plugins: env.Plugins,
		HTTP: httpclient.New(httpclient.Config{
			RequestsPerSecond: 1000,
			Burst:             1000,
			MaxRetries:        1,
			InitialInterval:   time.Millisecond,
			MaxInterval:       2 * time.Millisecond,
		}, logger, nil),
		Builtins: builtins,
	})
	env.Ctx = env.Site.Context()
	return env
}

// Boot fires plugins_loaded and init on the scope.
func (e *TestEnv) Boot() {
	e.Site.Boot(context.Background())
}

// CreatePost stores a post and returns its ID.
func (e *TestEnv) CreatePost(t testing.TB, title, content, status string) int64 {
	t.Helper()
	id, err := e.Posts.Create(context.Background(), &host.Post{Title: title, Content: content, Status: status})
	if err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	return id
}

// PostCreated fires the post-created event for an existing post.
func (e *TestEnv) PostCreated(t testing.TB, id int64) {
	t.Helper()
	p, err := e.Posts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load post: %v", err)
	}
	integration.FirePostCreated(context.Background(), e.Ctx.Hooks, integration.PostCreated{
		PostID:  p.ID,
		Title:   p.Title,
		Content: p.Content,
	})
}

// Meta returns post meta, or "" when unset.
func (e *TestEnv) Meta(id int64, key string) string {
	v, _, _ := e.Posts.GetMeta(context.Background(), id, key)
	return v
}

// ScriptedAI returns queued responses in order and records prompts.
// When the queue is empty it returns Default.
type ScriptedAI struct {
	mu        sync.Mutex
	Default   string
	Err       error
	responses []string
	prompts   []host.Prompt
}

var _ host.TextGenerator = (*ScriptedAI)(nil)

// Queue appends responses.
func (a *ScriptedAI) Queue(responses ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses = append(a.responses, responses...)
}

func (a *ScriptedAI) Generate(ctx context.Context, p host.Prompt) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, p)
	if a.Err != nil {
		return "", a.Err
	}
	if len(a.responses) == 0 {
		return a.Default, nil
	}
	out := a.responses[0]
	a.responses = a.responses[1:]
	return out, nil
}

// Prompts returns the prompts received so far.
func (a *ScriptedAI) Prompts() []host.Prompt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]host.Prompt(nil), a.prompts...)
}
