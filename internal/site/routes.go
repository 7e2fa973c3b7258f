package site

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"autoblog/pkg/host"

	"github.com/go-chi/chi/v5"
)

// Route is an endpoint registered by an integration.
type Route struct {
	Namespace string `json:"namespace"`
	Method    string `json:"method"`
	Path      string `json:"path"`
}

// Routes collects integration endpoints. Each route is served at
// /{namespace}/{pattern} relative to where Routes is mounted.
type Routes struct {
	mu     sync.RWMutex
	mux    chi.Router
	routes []Route
}

var _ host.Router = (*Routes)(nil)

// NewRoutes creates an empty table.
func NewRoutes() *Routes {
	return &Routes{mux: chi.NewRouter()}
}

// Handle registers h for method and pattern under namespace. Patterns use
// chi syntax, e.g. "share/{post_id}".
func (r *Routes) Handle(namespace, method, pattern string, h http.HandlerFunc) {
	path := "/" + strings.Trim(namespace, "/") + "/" + strings.TrimLeft(pattern, "/")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.mux.MethodFunc(strings.ToUpper(method), path, h)
	r.routes = append(r.routes, Route{Namespace: namespace, Method: strings.ToUpper(method), Path: path})
}

// List returns the registered routes sorted by path.
func (r *Routes) List() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]Route(nil), r.routes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// ServeHTTP dispatches to the matching integration route.
func (r *Routes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	mux := r.mux
	r.mu.RUnlock()
	mux.ServeHTTP(w, req)
}
