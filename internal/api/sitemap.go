package api

import (
	"html/template"
	"net/http"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"
)

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Endpoints lists the routes served by the server.
var Endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available endpoints"},
	{Path: "/health", Method: "GET", Description: `Health check endpoint - returns {"status": "ok"}`},
	{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"},
	{Path: "/admin/integrations", Method: "GET", Description: "Integrations page; ?integration=<id> opens its settings"},
	{Path: "/api/integrations", Method: "GET", Description: "List integrations (?category=<tag>, ?group=1)"},
	{Path: "/api/integrations/{id}", Method: "GET", Description: "Integration details with masked settings"},
	{Path: "/api/integrations/{id}/enable", Method: "POST", Description: "Enable an integration"},
	{Path: "/api/integrations/{id}/disable", Method: "POST", Description: "Disable an integration"},
	{Path: "/api/integrations/{id}/settings", Method: "GET|PUT|POST", Description: "Read or update settings (JSON or form)"},
	{Path: "/api/categories", Method: "GET", Description: "Integration categories"},
	{Path: "/api/posts", Method: "GET", Description: "Recent posts (?limit=)"},
	{Path: "/api/generate", Method: "POST", Description: "Generate a post from a topic"},
	{Path: "/api/cron", Method: "GET", Description: "Scheduled pseudo-cron events"},
	{Path: "/api/routes", Method: "GET", Description: "Routes registered by enabled integrations"},
	{Path: "/api/x/{id}/...", Method: "*", Description: "Integration routes"},
	{Path: "/api/events", Method: "GET", Description: "Websocket stream of post events"},
}

var sitemapTemplate = template.Must(template.New("sitemap").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>autoblog</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        h2 { color: #569cd6; margin-top: 30px; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
        a { color: #569cd6; text-decoration: none; }
    </style>
</head>
<body>
    <h1>autoblog</h1>
    <p>Endpoints under /api and /admin require a bearer token.</p>
    <h2>Available Endpoints</h2>
{{- range .}}
    <div class="endpoint">
        <div><span class="method">{{.Method}}</span> <span class="path">{{.Path}}</span></div>
        <div class="description">{{.Description}}</div>
    </div>
{{- end}}
    <h2>Examples</h2>
    <div class="endpoint">
        <div>List integrations:</div>
        <div class="description">curl -H "Authorization: Bearer $TOKEN" <a href="/api/integrations">/api/integrations</a></div>
    </div>
</body>
</html>
`))

// handleSitemap lists the endpoints as HTML for browsers and as plain text
// otherwise.
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := sitemapTemplate.Execute(w, Endpoints); err != nil {
			s.logger.Error("Failed to render sitemap", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	tw.Write([]byte("autoblog\n========\n\nAvailable endpoints:\n\n"))
	for _, ep := range Endpoints {
		tw.Write([]byte("  " + ep.Method + "\t" + ep.Path + "\t" + ep.Description + "\n"))
	}
	tw.Write([]byte("\nExample:\n\n  curl -H \"Authorization: Bearer $TOKEN\" http://localhost:8080/api/integrations | jq\n"))
	tw.Flush()
}
