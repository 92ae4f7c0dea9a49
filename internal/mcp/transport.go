package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management.
	Stateless bool
}

// NewHTTPHandler serves the MCP server over Streamable HTTP. Every request is
// routed to the same server instance.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	var sdkOpts mcp.StreamableHTTPOptions
	if opts != nil {
		sdkOpts.Stateless = opts.Stateless
	}

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &sdkOpts)
}

// NewMux mounts the MCP endpoint at /mcp, health at /health and a landing
// page at /.
func NewMux(server *Server, index HealthChecker, opts *HTTPHandlerOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/mcp", NewHTTPHandler(server, opts))
	mux.HandleFunc("/health", NewHealthHandler(index))
	mux.HandleFunc("/", NewLandingHandler(server.IndexName()))
	return mux
}
