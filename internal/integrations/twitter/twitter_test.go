package twitter

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"autoblog/pkg/host"
	"autoblog/pkg/integration"
	"autoblog/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var builtin = integration.BuiltinInfo{
	ID: ID,
	Factory: func(ctx *integration.Context) (integration.Integration, error) {
		return New(ctx), nil
	},
}

func setup(t *testing.T) (*testutil.TestEnv, *Twitter) {
	t.Helper()
	env := testutil.NewTestEnv(t, builtin)
	tw, ok := env.Site.Integrations().Get(ID).(*Twitter)
	require.True(t, ok)
	require.True(t, tw.UpdateSettings(integration.Settings{
		"bearer_token": "secret-token",
		"api_base":     env.Server.URL(),
	}))
	require.True(t, tw.Enable())
	env.Server.RequireBearer("secret-token")
	env.Server.SetResponse(http.MethodPost, "/2/tweets", http.StatusCreated, `{"data":{"id":"1790","text":"x"}}`)
	return env, tw
}

func TestTweetsPublishedPost(t *testing.T) {
	env, _ := setup(t)
	env.Boot()

	id := env.CreatePost(t, "Pour Over Guide", "body", host.StatusPublish)
	env.PostCreated(t, id)

	calls := testutil.FilterAPICalls(env.Server.GetAPICalls(), http.MethodPost, "/2/tweets")
	require.Len(t, calls, 1)
	assert.Equal(t, "Pour Over Guide https://blog.example.com/1/pour-over-guide/", calls[0].JSON().Get("text").String())
	assert.Contains(t, env.Meta(id, MetaShared), `"id":"1790"`)
}

func TestWrongTokenLeavesNoMarker(t *testing.T) {
	env, tw := setup(t)
	require.True(t, tw.UpdateSettings(integration.Settings{"bearer_token": "other"}))
	env.Boot()

	id := env.CreatePost(t, "Pour Over Guide", "body", host.StatusPublish)
	env.PostCreated(t, id)
	assert.Empty(t, env.Meta(id, MetaShared))
}

func TestFitTweet(t *testing.T) {
	link := "https://blog.example.com/12/a-very-long-title/"

	short := "Short " + link
	assert.Equal(t, short, FitTweet(short, link))

	long := strings.Repeat("word ", 80) + link
	got := FitTweet(long, link)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxLength)
	assert.True(t, strings.HasSuffix(got, " "+link))
	assert.Contains(t, got, "…")

	noLink := strings.Repeat("ñ", 300)
	assert.Equal(t, MaxLength, utf8.RuneCountInString(FitTweet(noLink, link)))
}

func TestVerify(t *testing.T) {
	env, tw := setup(t)
	env.Server.SetResponse(http.MethodGet, "/2/users/me", http.StatusOK, `{"data":{"username":"coffeenotes"}}`)

	name, err := tw.Verify(context.Background(), tw.Settings())
	require.NoError(t, err)
	assert.Equal(t, "@coffeenotes", name)
}
