// Package testutil provides testing utilities for autoblog integrations.
// This package contains a mock third-party API server and a TestEnv that
// wires real in-memory host services into an integration.Context.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse is a canned reply.
type MockResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// MockAPIServer simulates third-party HTTP APIs (Graph, Twitter, Pixabay).
// Unmatched requests get 404.
type MockAPIServer struct {
	ts *httptest.Server

	mu        sync.RWMutex
	responses map[string]MockResponse
	token     string

	callsMu sync.Mutex
	calls   []APICall
}

// NewMockAPIServer starts a mock server on a random local port.
func NewMockAPIServer() *MockAPIServer {
	s := &MockAPIServer{responses: make(map[string]MockResponse)}
	s.ts = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the base URL of the server.
func (s *MockAPIServer) URL() string {
	return s.ts.URL
}

// Stop shuts the server down.
func (s *MockAPIServer) Stop() {
	s.ts.Close()
}

// RequireBearer makes every request without "Authorization: Bearer token"
// fail with 401.
func (s *MockAPIServer) RequireBearer(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetResponse registers a reply for method and path.
func (s *MockAPIServer) SetResponse(method, path string, status int, body string) {
	s.SetRawResponse(method, path, MockResponse{Status: status, ContentType: "application/json", Body: []byte(body)})
}

// SetRawResponse registers a reply with an explicit content type.
func (s *MockAPIServer) SetRawResponse(method, path string, resp MockResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method+" "+path] = resp
}

func (s *MockAPIServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.callsMu.Lock()
	s.calls = append(s.calls, APICall{
		Timestamp: time.Now(),
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Header:    r.Header.Clone(),
		Body:      body,
	})
	s.callsMu.Unlock()

	s.mu.RLock()
	token := s.token
	resp, ok := s.responses[r.Method+" "+r.URL.Path]
	s.mu.RUnlock()

	if token != "" && strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != token {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// GetAPICalls returns every request received so far.
func (s *MockAPIServer) GetAPICalls() []APICall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return append([]APICall(nil), s.calls...)
}

// ClearAPICalls forgets recorded requests.
func (s *MockAPIServer) ClearAPICalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls = nil
}
