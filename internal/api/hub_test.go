package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autoblog/internal/hooks"
	"autoblog/pkg/integration"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func TestHubStreamsGeneratedPosts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t, false)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn := dialEvents(t, ts)
	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/generate", `{"topic":"latte art"}`, jsonHeader())
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "post_created", ev.Type)
	assert.Equal(t, int64(1), ev.PostID)
	assert.Equal(t, "Generated Title", ev.Title)
	assert.True(t, epoch.Equal(ev.Time), "event time comes from the hub clock, got %s", ev.Time)

	conn.Close()
	assert.Eventually(t, func() bool { return f.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	f.hub.Close()
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(zap.NewNop(), nil)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r)
	}))
	defer ts.Close()

	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	late, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		resp.Body.Close()
		require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = late.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "closed hub turns clients away: %v", err)
		late.Close()
	}
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.NotPanics(t, func() { hub.Broadcast(Event{Type: "post_created", PostID: 9}) })
	assert.Equal(t, 0, hub.Clients())
}

func TestHubExtensionSubscribes(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	reg := hooks.New(zap.NewNop(), nil)
	hub.Extension()(reg)

	assert.True(t, reg.HasAction(integration.HookPostCreated))
	assert.NotPanics(t, func() {
		integration.FirePostCreated(context.Background(), reg, integration.PostCreated{PostID: 3, Title: "Pour Over"})
	})
}
