// Package app builds the collaborators shared by the command line tools from
// a resolved configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/viant/afs"

	"github.com/bull/docindex/internal/blob"
	"github.com/bull/docindex/internal/config"
	"github.com/bull/docindex/internal/embedding"
	"github.com/bull/docindex/internal/searchindex"
)

// NewLogger returns a text logger writing to w. Verbose enables debug output.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewEmbedder creates an embedder for the configured provider.
func NewEmbedder(cfg *config.Config) (*embedding.Embedder, error) {
	client, err := embedding.NewClient(embedding.ClientConfig{
		APIKey:          cfg.Embedding.OpenAIAPIKey,
		BaseURL:         cfg.Embedding.BaseURL,
		AzureEndpoint:   cfg.Embedding.AzureEndpoint,
		AzureAPIKey:     cfg.Embedding.AzureAPIKey,
		AzureAPIVersion: cfg.Embedding.AzureAPIVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return embedding.NewEmbedder(client,
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithDimension(cfg.Embedding.Dimensions),
		embedding.WithRequestsPerMinute(cfg.Embedding.RequestsPerMinute),
	), nil
}

// OpenIndex connects to the configured search index backend.
func OpenIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (searchindex.Backend, error) {
	index, err := searchindex.Open(ctx, searchindex.Options{
		Backend: cfg.Index.Backend,
		Qdrant: searchindex.QdrantConfig{
			Host:   cfg.Index.QdrantHost,
			Port:   cfg.Index.QdrantPort,
			APIKey: cfg.Index.QdrantAPIKey,
			UseTLS: cfg.Index.QdrantTLS,
		},
		SQLitePath: cfg.Index.SQLitePath,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", cfg.Index.Backend, err)
	}
	return index, nil
}

// NewFileSystem returns the storage service used for uploads and downloads.
func NewFileSystem() afs.Service {
	return afs.New()
}

// NewUploader creates a blob uploader rooted at the configured base URL. It
// never uploads with fewer than blob.DefaultWorkers workers.
func NewUploader(fs afs.Service, cfg *config.Config, workers int, logger *slog.Logger) *blob.Uploader {
	return blob.NewUploader(fs, cfg.Storage.BaseURL,
		blob.WithWorkers(max(workers, blob.DefaultWorkers)),
		blob.WithLogger(logger),
	)
}
