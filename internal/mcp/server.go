package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docindex/internal/searchindex"
)

// Searcher is the read side of a search index backend.
type Searcher interface {
	Search(ctx context.Context, name string, query searchindex.Query) ([]searchindex.Hit, error)
	Stats(ctx context.Context, name string) (*searchindex.Stats, error)
}

// QueryEmbedder turns a search query into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	index  string
}

// Config holds server dependencies.
type Config struct {
	Index     Searcher
	Embedder  QueryEmbedder
	IndexName string // Default index for tools that omit one
	Logger    *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp")

	impl := &mcp.Implementation{
		Name:    "docindex-search",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_index",
		Description: "Search indexed documents semantically. Returns the best matching chunk per document with its title and source file.",
	}, makeSearchHandler(cfg.Index, cfg.Embedder, cfg.IndexName, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether a search index exists and how many chunks it holds.",
	}, makeStatusHandler(cfg.Index, cfg.IndexName))

	return &Server{server: server, index: cfg.IndexName}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// IndexName is the default index the tools operate on.
func (s *Server) IndexName() string {
	return s.index
}
