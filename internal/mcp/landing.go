package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>docindex search</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 40rem; margin: 3rem auto; color: #1e293b; }
  code { font-family: Menlo, monospace; background: #f1f5f9; padding: 0.1rem 0.3rem; }
</style>
</head>
<body>
<h1>docindex search</h1>
<p>Semantic search over the <code>{{.Index}}</code> index via the Model Context Protocol.</p>
<ul>
  <li><a href="/mcp"><code>/mcp</code></a> MCP Streamable HTTP</li>
  <li><a href="/health"><code>/health</code></a> Health check</li>
</ul>
</body>
</html>`))

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler(index string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		landingTemplate.Execute(w, struct{ Index string }{index})
	}
}
