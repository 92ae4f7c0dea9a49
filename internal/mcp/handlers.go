package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docindex/internal/metadata"
	"github.com/bull/docindex/internal/searchindex"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
	defaultMinScore   = 0.4
)

// makeSearchHandler creates the search_index tool handler.
// Search flow:
// 1. Embed the query text
// 2. Search chunks (limit * 3 so enough documents survive deduplication)
// 3. Drop chunks below the minimum score
// 4. Keep the highest scoring chunk per source file
func makeSearchHandler(index Searcher, embedder QueryEmbedder, defaultIndex string, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, SearchIndexInput,
) (*mcp.CallToolResult, SearchIndexOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchIndexInput) (
		*mcp.CallToolResult, SearchIndexOutput, error,
	) {
		if strings.TrimSpace(input.Query) == "" {
			return nil, SearchIndexOutput{}, errors.New("query is required")
		}

		name := input.Index
		if name == "" {
			name = defaultIndex
		}
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		if maxResults > maxMaxResults {
			maxResults = maxMaxResults
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = defaultMinScore
		}

		vector, err := embedder.Embed(ctx, input.Query)
		if err != nil {
			return nil, SearchIndexOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}

		hits, err := index.Search(ctx, name, searchindex.Query{
			Vector: vector,
			Text:   input.Filter,
			Top:    maxResults * 3,
		})
		if err != nil {
			return nil, SearchIndexOutput{}, fmt.Errorf("search failed: %w", err)
		}

		// Hits arrive ordered by score, so the first hit per file is its best.
		seen := make(map[string]bool)
		results := make([]SearchResult, 0, maxResults)
		for _, hit := range hits {
			if hit.Score < minScore {
				continue
			}
			if seen[hit.Filepath] {
				continue
			}
			seen[hit.Filepath] = true

			result := SearchResult{
				Title:    hit.Title,
				Filepath: hit.Filepath,
				Score:    hit.Score,
				Content:  hit.Content,
			}
			if meta, err := metadata.Decode(hit.MetaJSON); err == nil {
				result.DocumentReference = meta.DocumentReference
				result.ChunkNumber = meta.ChunkNumber
			} else {
				logger.Warn("undecodable chunk metadata", "id", hit.ID, "error", err)
			}
			results = append(results, result)

			if len(results) == maxResults {
				break
			}
		}

		if len(results) == 0 {
			return nil, SearchIndexOutput{
				Results: []SearchResult{},
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}

		return nil, SearchIndexOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
// A missing index is reported, not treated as an error.
func makeStatusHandler(index Searcher, defaultIndex string) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		name := input.Index
		if name == "" {
			name = defaultIndex
		}

		stats, err := index.Stats(ctx, name)
		if err != nil {
			if errors.Is(err, searchindex.ErrIndexNotFound) {
				return nil, IndexStatusOutput{Index: name}, nil
			}
			return nil, IndexStatusOutput{}, fmt.Errorf("failed to get index stats: %w", err)
		}

		return nil, IndexStatusOutput{
			Index:       name,
			Exists:      true,
			RecordCount: stats.RecordCount,
		}, nil
	}
}
