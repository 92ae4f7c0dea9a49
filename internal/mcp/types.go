// Package mcp exposes a search index to MCP clients.
package mcp

// SearchIndexInput defines the input parameters for the search_index tool.
type SearchIndexInput struct {
	// Query is embedded and matched against chunk vectors.
	Query string `json:"query" jsonschema:"The natural language search query"`
	// Index overrides the server's default index.
	Index string `json:"index,omitempty" jsonschema:"Index to search, defaults to the server's configured index"`
	// Filter restricts hits to chunks whose content contains every term.
	Filter string `json:"filter,omitempty" jsonschema:"Optional keywords every returned chunk must contain"`
	// MaxResults is the maximum number of documents to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of documents to return (1-20, default 5)"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum relevance score threshold between 0 and 1"`
}

// SearchIndexOutput contains the search results.
type SearchIndexOutput struct {
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// SearchResult is the best matching chunk of one document.
type SearchResult struct {
	Title             string  `json:"title"`
	Filepath          string  `json:"filepath"`
	DocumentReference string  `json:"document_reference,omitempty"`
	ChunkNumber       int     `json:"chunk_number,omitempty"`
	Score             float64 `json:"score"`
	Content           string  `json:"content"`
}

// IndexStatusInput defines the input parameters for the index_status tool.
type IndexStatusInput struct {
	Index string `json:"index,omitempty" jsonschema:"Index to inspect, defaults to the server's configured index"`
}

// IndexStatusOutput reports whether an index exists and how many records it holds.
type IndexStatusOutput struct {
	Index       string `json:"index"`
	Exists      bool   `json:"exists"`
	RecordCount uint64 `json:"record_count"`
}
