package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"autoblog/internal/ai"
	"autoblog/internal/clock"
	"autoblog/internal/metrics"
	"autoblog/internal/options"
	"autoblog/internal/posts"
	"autoblog/internal/site"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

type echoIntegration struct {
	*integration.Base
	ctx *integration.Context
}

func newEcho(ctx *integration.Context) *echoIntegration {
	e := &echoIntegration{ctx: ctx}
	e.Base = integration.NewBase(integration.Metadata{
		ID:       "echo",
		Name:     "Echo",
		Version:  "1.0.0",
		Author:   "tests",
		Category: integration.CategoryOther,
		Builtin:  true,
	}, integration.Settings{
		"enabled": false,
		"token":   "",
		"loud":    false,
		"repeat":  1,
	}, ctx)
	e.Bind(e)
	return e
}

func (e *echoIntegration) SettingsFields() []integration.Field {
	return []integration.Field{
		{Key: "token", Label: "Token", Type: integration.FieldPassword},
		{Key: "loud", Label: "Loud", Type: integration.FieldCheckbox},
		{Key: "repeat", Label: "Repeat", Type: integration.FieldNumber},
	}
}

func (e *echoIntegration) SanitizeSettings(in integration.Settings) integration.Settings {
	return integration.KeepSecrets(in, e.Settings(), "token")
}

func (e *echoIntegration) Init() {
	e.ctx.Routes.Handle("echo", http.MethodGet, "say/{word}", func(w http.ResponseWriter, r *http.Request) {
		word := chi.URLParam(r, "word")
		if e.Settings().Bool("loud") {
			word = strings.ToUpper(word)
		}
		integration.WriteJSON(w, http.StatusOK, map[string]string{"word": strings.Repeat(word, e.Settings().Int("repeat"))})
	})
}

type fixture struct {
	server  *Server
	auth    *Auth
	hub     *Hub
	options *options.Memory
	posts   *posts.Memory
	deps    site.Deps
	ticks   *int32
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()
	mock := clock.NewMock(epoch)
	f := &fixture{
		options: options.NewMemory(),
		posts:   posts.NewMemory("https://blog.example.com", mock),
		hub:     NewHub(zap.NewNop(), mock),
		ticks:   new(int32),
	}
	f.deps = site.Deps{
		Logger:  zap.NewNop(),
		Metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
		Clock:   mock,
		Options: f.options,
		Posts:   f.posts,
		AI:      ai.NewStatic("# Generated Title\n\nGenerated body."),
		Builtins: []integration.BuiltinInfo{{
			ID:      "echo",
			Factory: func(ctx *integration.Context) (integration.Integration, error) { return newEcho(ctx), nil },
		}},
		Extensions: []site.Extension{
			f.hub.Extension(),
			func(h host.Hooks) {
				h.AddAction("test_tick", func(ctx context.Context, _ any) { atomic.AddInt32(f.ticks, 1) }, 10)
			},
		},
	}
	if withAuth {
		f.auth = NewAuth("0123456789abcdef0123", "autoblog", time.Hour, mock)
	}
	f.server = NewServer(Config{CronOnRequest: true}, func() *site.Site { return site.New(f.deps) }, f.auth, f.hub, f.deps.Metrics, zap.NewNop())
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	f.server.Wait()
	return rec
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": {"application/json"}}
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsKeptWhenValid(t *testing.T) {
	f := newFixture(t, false)
	id := "6f1c2b9e-8d3a-4c55-9f10-2a7b3c4d5e6f"

	rec := f.do(t, http.MethodGet, "/health", "", http.Header{RequestIDHeader: {id}})
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	rec = f.do(t, http.MethodGet, "/health", "", http.Header{RequestIDHeader: {"<script>"}})
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestSitemap(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "/api/integrations")

	rec = f.do(t, http.MethodGet, "/", "", http.Header{"Accept": {"text/html,application/xhtml+xml"}})
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `<span class="path">/api/events</span>`)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodGet, "/api/integrations", "", nil)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autoblog_hook_dispatches_total")
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/integrations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = f.do(t, http.MethodGet, "/api/integrations", "", http.Header{"Authorization": {"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := f.auth.Issue("admin")
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/integrations", "", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/integrations", "", http.Header{"Cookie": {TokenCookie + "=" + token}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsExpiredAndForeignTokens(t *testing.T) {
	f := newFixture(t, true)

	past := NewAuth("0123456789abcdef0123", "autoblog", time.Minute, clock.NewMock(epoch.Add(-time.Hour)))
	expired, err := past.Issue("admin")
	require.NoError(t, err)
	_, err = f.auth.Validate(expired)
	assert.Error(t, err)

	other := NewAuth("0123456789abcdef0123", "someone-else", time.Hour, clock.NewMock(epoch))
	foreign, err := other.Issue("admin")
	require.NoError(t, err)
	_, err = f.auth.Validate(foreign)
	assert.Error(t, err)

	wrongKey := NewAuth("another-secret-of-length", "autoblog", time.Hour, clock.NewMock(epoch))
	forged, err := wrongKey.Issue("admin")
	require.NoError(t, err)
	_, err = f.auth.Validate(forged)
	assert.Error(t, err)

	good, err := f.auth.Issue("admin")
	require.NoError(t, err)
	subject, err := f.auth.Validate(good)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestIntegrationLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/integrations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo", gjson.Get(rec.Body.String(), "0.id").String())
	assert.False(t, gjson.Get(rec.Body.String(), "0.enabled").Bool())

	rec = f.do(t, http.MethodPost, "/api/integrations/echo/enable", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "enabled").Bool())

	rec = f.do(t, http.MethodGet, "/api/x/echo/say/hi", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"word":"hi"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/integrations/echo/disable", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/x/echo/say/hi", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "disabled integrations register no routes")

	rec = f.do(t, http.MethodPost, "/api/integrations/missing/enable", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsJSON(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPut, "/api/integrations/echo/settings",
		`{"token":"s3cret","loud":true,"repeat":2,"enabled":true}`, jsonHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "********", gjson.Get(rec.Body.String(), "token").String())
	assert.False(t, gjson.Get(rec.Body.String(), "enabled").Bool(), "enabled only changes through enable")

	stored, _, err := f.options.Get(context.Background(), "integration_echo")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored["token"])

	rec = f.do(t, http.MethodGet, "/api/integrations/echo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "********", gjson.Get(rec.Body.String(), "settings.token").String())
	assert.Equal(t, "repeat", gjson.Get(rec.Body.String(), "fields.2.key").String())

	f.do(t, http.MethodPost, "/api/integrations/echo/enable", "", nil)
	rec = f.do(t, http.MethodGet, "/api/x/echo/say/ab", "", nil)
	assert.JSONEq(t, `{"word":"ABAB"}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/integrations/echo/settings", `{`, jsonHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/integrations/echo/settings", `x`, http.Header{"Content-Type": {"text/plain"}})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestSettingsFormPost(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPut, "/api/integrations/echo/settings", `{"token":"keep-me","loud":true}`, jsonHeader())

	form := url.Values{"token": {"********"}, "repeat": {"3"}}
	rec := f.do(t, http.MethodPost, "/api/integrations/echo/settings", form.Encode(),
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/integrations?integration=echo", rec.Header().Get("Location"))

	stored, _, err := f.options.Get(context.Background(), "integration_echo")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", stored["token"])
	assert.Equal(t, false, stored["loud"], "unchecked box is cleared")
	assert.EqualValues(t, 3, stored["repeat"])
}

func TestSettingsMultipartPost(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPut, "/api/integrations/echo/settings", `{"loud":true,"repeat":3}`, jsonHeader())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("loud", "1"))
	require.NoError(t, mw.WriteField("repeat", "5"))
	require.NoError(t, mw.Close())

	rec := f.do(t, http.MethodPost, "/api/integrations/echo/settings", body.String(),
		http.Header{"Content-Type": {mw.FormDataContentType()}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	stored, _, err := f.options.Get(context.Background(), "integration_echo")
	require.NoError(t, err)
	assert.Equal(t, true, stored["loud"])
	assert.EqualValues(t, 5, stored["repeat"])

	rec = f.do(t, http.MethodPost, "/api/integrations/echo/settings", "--broken",
		http.Header{"Content-Type": {"multipart/form-data; boundary=xyz"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPage(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/admin/integrations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="integration-echo"`)

	rec = f.do(t, http.MethodGet, "/admin/integrations?integration=echo", "", nil)
	assert.Contains(t, rec.Body.String(), `action="/api/integrations/echo/settings"`)

	rec = f.do(t, http.MethodGet, "/admin/integrations?integration=nope", "", nil)
	assert.Contains(t, rec.Body.String(), `id="integration-echo"`, "unknown id falls back to the list")
}

func TestCategories(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(len(integration.Categories())), gjson.Get(rec.Body.String(), "#").Int())
}

func TestGenerateAndListPosts(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/generate", `{"topic":"  pour over  ","status":"publish"}`, jsonHeader())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Generated Title", gjson.Get(rec.Body.String(), "title").String())
	assert.Equal(t, "https://blog.example.com/1/generated-title/", gjson.Get(rec.Body.String(), "permalink").String())

	rec = f.do(t, http.MethodGet, "/api/posts?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "#").Int())

	rec = f.do(t, http.MethodGet, "/api/posts?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t, false)
	tests := []string{
		`{}`,
		`{"topic":"   "}`,
		`{"topic":"x","word_count":50}`,
		`{"topic":"x","status":"scheduled"}`,
	}
	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/generate", body, jsonHeader())
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
	rec := f.do(t, http.MethodPost, "/api/generate", `not json`, jsonHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCronRunsAfterScopedRequest(t *testing.T) {
	f := newFixture(t, false)
	st := site.New(f.deps)
	require.NoError(t, st.Cron().ScheduleSingle(context.Background(), epoch.Add(-time.Minute), "test_tick", nil))

	f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, int32(0), atomic.LoadInt32(f.ticks), "unscoped routes do not spawn cron")

	f.do(t, http.MethodGet, "/api/integrations", "", nil)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.ticks))

	rec := f.do(t, http.MethodGet, "/api/cron", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRoutes(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPost, "/api/integrations/echo/enable", "", nil)

	rec := f.do(t, http.MethodGet, "/api/routes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var routes []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "echo", routes[0]["namespace"])
}
