package pixabay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autoblog/pkg/host"
	"autoblog/pkg/integration"
	"autoblog/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var builtin = integration.BuiltinInfo{
	ID: ID,
	Factory: func(ctx *integration.Context) (integration.Integration, error) {
		return New(ctx), nil
	},
}

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

func setup(t *testing.T) (*testutil.TestEnv, *Pixabay) {
	t.Helper()
	env := testutil.NewTestEnv(t, builtin)
	p, ok := env.Site.Integrations().Get(ID).(*Pixabay)
	require.True(t, ok)
	require.True(t, p.UpdateSettings(integration.Settings{
		"api_key":  "pk-123",
		"api_base": env.Server.URL(),
	}))
	require.True(t, p.Enable())

	env.Server.SetResponse(http.MethodGet, "/api/", http.StatusOK, fmt.Sprintf(`{"total":1,"hits":[
		{"id":42,"pageURL":"https://pixabay.com/photos/42/","user":"barista","largeImageURL":"%s/img/coffee.jpg?x=1"}
	]}`, env.Server.URL()))
	env.Server.SetRawResponse(http.MethodGet, "/img/coffee.jpg", testutil.MockResponse{
		Status: http.StatusOK, ContentType: "image/jpeg", Body: jpeg,
	})
	return env, p
}

func TestAttachesFeaturedImage(t *testing.T) {
	env, _ := setup(t)
	env.Boot()

	id := env.CreatePost(t, "How to Make Cold Brew at Home", "body", host.StatusDraft)
	env.PostCreated(t, id)

	searches := testutil.FilterAPICalls(env.Server.GetAPICalls(), http.MethodGet, "/api/")
	require.Len(t, searches, 1)
	q := searches[0].Query
	assert.Equal(t, "pk-123", q.Get("key"))
	assert.Equal(t, "make cold brew home", q.Get("q"))
	assert.Equal(t, "photo", q.Get("image_type"))
	assert.Equal(t, "horizontal", q.Get("orientation"))
	assert.Equal(t, "true", q.Get("safesearch"))
	assert.Equal(t, "1200", q.Get("min_width"))

	post, err := env.Posts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(post.FeaturedImage, "https://blog.example.com/media/2024/06/"))
	assert.True(t, strings.HasSuffix(post.FeaturedImage, "-pixabay-42.jpg"))

	key := strings.TrimPrefix(post.FeaturedImage, "https://blog.example.com/media/")
	data, err := os.ReadFile(filepath.Join(env.Media.Dir(), filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)

	var img Image
	require.NoError(t, json.Unmarshal([]byte(env.Meta(id, MetaImage)), &img))
	assert.Equal(t, int64(42), img.PixabayID)
	assert.Equal(t, "barista", img.User)
	assert.Equal(t, post.FeaturedImage, img.URL)
}

func TestKeepsExistingFeaturedImage(t *testing.T) {
	env, _ := setup(t)
	env.Boot()

	id := env.CreatePost(t, "Cold Brew", "body", host.StatusDraft)
	require.NoError(t, env.Posts.SetFeaturedImage(context.Background(), id, "https://cdn.example.com/own.jpg"))
	env.PostCreated(t, id)

	assert.Empty(t, env.Server.GetAPICalls())
	post, _ := env.Posts.Get(context.Background(), id)
	assert.Equal(t, "https://cdn.example.com/own.jpg", post.FeaturedImage)
}

func TestNoResultsFallsBackToFirstKeyword(t *testing.T) {
	env, p := setup(t)
	env.Server.SetResponse(http.MethodGet, "/api/", http.StatusOK, `{"total":0,"hits":[]}`)

	id := env.CreatePost(t, "Siphon Brewing Secrets", "body", host.StatusDraft)
	_, err := p.Attach(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoResults)

	searches := testutil.FilterAPICalls(env.Server.GetAPICalls(), http.MethodGet, "/api/")
	require.Len(t, searches, 2)
	assert.Equal(t, "siphon brewing secrets", searches[0].Query.Get("q"))
	assert.Equal(t, "siphon", searches[1].Query.Get("q"))
	assert.Empty(t, env.Meta(id, MetaImage))
}

func TestNotConfigured(t *testing.T) {
	env := testutil.NewTestEnv(t, builtin)
	p := env.Site.Integrations().Get(ID).(*Pixabay)
	id := env.CreatePost(t, "Cold Brew", "body", host.StatusDraft)

	_, err := p.Attach(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSanitizeSettings(t *testing.T) {
	_, p := setup(t)
	require.True(t, p.UpdateSettings(integration.Settings{
		"api_key":     "********",
		"image_type":  "gif",
		"orientation": "vertical",
		"min_width":   -5,
		"safesearch":  "0",
	}))

	got := p.Settings()
	assert.Equal(t, "pk-123", got.String("api_key"))
	assert.Equal(t, "photo", got.String("image_type"))
	assert.Equal(t, "vertical", got.String("orientation"))
	assert.Equal(t, 0, got.Int("min_width"))
	assert.False(t, got.Bool("safesearch"))
}

func TestFetchRoute(t *testing.T) {
	env, _ := setup(t)
	env.Boot()
	env.CreatePost(t, "Cold Brew", "body", host.StatusDraft)

	rec := httptest.NewRecorder()
	env.Site.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pixabay/fetch/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gjson.GetBytes(rec.Body.Bytes(), "id").Int())

	rec = httptest.NewRecorder()
	env.Site.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pixabay/fetch/1", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"ultimate", "guide", "espresso", "machines"},
		Keywords("The Ultimate Guide to Espresso Machines for Beginners"))
	assert.Empty(t, Keywords("A to Z"))
}
