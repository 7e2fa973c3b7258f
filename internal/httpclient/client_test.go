package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient() *Client {
	return New(Config{
		RequestsPerSecond: 1000,
		Burst:             1000,
		MaxRetries:        3,
		InitialInterval:   time.Millisecond,
		MaxInterval:       5 * time.Millisecond,
	}, zap.NewNop(), nil)
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "autoblog/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[{"id":7}]}`))
	}))
	defer server.Close()

	res, err := testClient().GetJSON(context.Background(), server.URL+"/api?key=secret", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Get("hits.0.id").Int())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"text":"hello"}`, string(body))
		_, _ = w.Write([]byte(`{"data":{"id":"42"}}`))
	}))
	defer server.Close()

	res, err := testClient().PostJSON(context.Background(), server.URL, nil, map[string]string{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Get("data.id").String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer server.Close()

	_, err := testClient().PostForm(context.Background(), server.URL+"?access_token=abc", nil, url.Values{"message": {"hi"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.NotContains(t, err.Error(), "abc")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(Config{
		RequestsPerSecond: 1000,
		Burst:             1000,
		MaxRetries:        0,
		InitialInterval:   time.Millisecond,
		BreakerTimeout:    time.Hour,
	}, zap.NewNop(), nil)

	for i := 0; i < 5; i++ {
		_, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
		require.Error(t, err)
	}

	_, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestClient_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer server.Close()

	data, ct, err := testClient().Download(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.Len(t, data, 3)
}

func TestClient_InvalidURL(t *testing.T) {
	_, err := testClient().Do(context.Background(), http.MethodGet, "://bad", nil, nil)
	assert.Error(t, err)
}
