// Package main provides the docindex CLI for building searchable document indexes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/docindex/internal/app"
	"github.com/bull/docindex/internal/chunker"
	"github.com/bull/docindex/internal/config"
	"github.com/bull/docindex/internal/extract"
	ghclient "github.com/bull/docindex/internal/github"
	"github.com/bull/docindex/internal/indexer"
	"github.com/bull/docindex/internal/searchindex"
)

var (
	configPath string
	indexName  string
	verbose    bool

	workers   int
	githubSrc string
	container string
	batchSize int
)

var rootCmd = &cobra.Command{
	Use:           "docindex",
	Short:         "Document search indexing tool",
	Long:          "CLI tool that uploads, chunks and embeds documents into a vector search index",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest --index NAME [FILE...]",
	Short: "Build an index from local files or a GitHub directory",
	Long: `Recreates the named index and fills it from the given documents.

This command:
1. Uploads every source file to blob storage
2. Extracts page text from each stored document (PDF or Markdown)
3. Splits pages into overlapping chunks and embeds each chunk
4. Drops and recreates the index
5. Writes records in batches, reporting rejected records

Environment variables:
  OPENAI_API_KEY         OpenAI API key for embeddings
  AZURE_OPENAI_ENDPOINT  Azure OpenAI endpoint (uses Azure when set)
  AZURE_OPENAI_KEY       Azure OpenAI key
  INDEX_BACKEND          qdrant (default) or sqlite
  QDRANT_HOST            Qdrant hostname (default: localhost)
  QDRANT_PORT            Qdrant gRPC port (default: 6334)
  SQLITE_PATH            SQLite database file for the sqlite backend
  STORAGE_BASE_URL       Blob store root (file://, gs:// or s3://)
  GITHUB_TOKEN           GitHub token for higher rate limits (optional)`,
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status --index NAME",
	Short: "Report the number of records in an index",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&indexName, "index", "i", "", "index name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkPersistentFlagRequired("index")

	ingestCmd.Flags().IntVarP(&workers, "workers", "w", indexer.DefaultWorkers, "documents processed concurrently")
	ingestCmd.Flags().StringVar(&githubSrc, "github", "", "also ingest documents from owner/repo[/dir]")
	ingestCmd.Flags().StringVar(&container, "container", "", "storage container (default from config)")
	ingestCmd.Flags().IntVar(&batchSize, "batch-size", indexer.DefaultBatchSize, "records per ingest request")
	addChunkFlags(ingestCmd)

	rootCmd.AddCommand(ingestCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && githubSrc == "" {
		return errors.New("no input: pass files or --github owner/repo[/dir]")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := app.NewLogger(os.Stderr, verbose)
	if err := searchindex.ValidateIndexName(indexName); err != nil {
		return err
	}

	paths := append([]string(nil), args...)
	if githubSrc != "" {
		fetched, cleanup, err := fetchGitHub(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		paths = append(paths, fetched...)
	}
	if len(paths) == 0 {
		return errors.New("no supported documents found")
	}

	embedder, err := app.NewEmbedder(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s index...\n", cfg.Index.Backend)
	index, err := app.OpenIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	fs := app.NewFileSystem()
	opts := []indexer.Option{
		indexer.WithLogger(logger),
		indexer.WithWorkers(workers),
		indexer.WithBatchSize(batchSize),
	}
	if container == "" {
		container = cfg.Storage.Container
	}
	opts = append(opts, indexer.WithContainer(container))
	chunkSize, overlap, err := chunkSettings(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, indexer.WithChunking(chunkSize, overlap))

	pipeline, err := indexer.NewPipeline(
		app.NewUploader(fs, cfg, workers, logger),
		extract.NewRouter(fs),
		embedder,
		index,
		opts...,
	)
	if err != nil {
		return err
	}

	fmt.Printf("Indexing %d documents into %q...\n", len(paths), indexName)
	result, err := pipeline.Run(ctx, indexName, paths)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Documents: %d\n", len(result.Documents))
	fmt.Printf("  Records: %d/%d\n", result.Succeeded, result.Submitted)
	fmt.Printf("  Batches: %d\n", result.Batches)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if verbose {
		fmt.Println()
		fmt.Println("Documents:")
		for _, doc := range result.Documents {
			fmt.Printf("  - %s: %q (%d chunks)\n", doc.Path, doc.Title, doc.Chunks)
		}
	}

	if len(result.Failures) > 0 {
		fmt.Println()
		fmt.Println("Failed records:")
		for _, failed := range result.Failures {
			fmt.Printf("  - %s (%s chunk %d): %s\n", failed.ID, failed.Filepath, failed.ChunkNumber, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

// fetchGitHub downloads supported documents into a temporary directory. The
// returned cleanup removes it.
func fetchGitHub(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]string, func(), error) {
	src, err := ghclient.ParseSource(githubSrc)
	if err != nil {
		return nil, nil, err
	}

	client, err := ghclient.NewClient(cfg.GitHub.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(client, src)

	if sha, err := fetcher.GetLatestCommitSHA(ctx); err == nil {
		logger.Info("Fetching GitHub documents", "source", src.String(), "commit", sha)
	} else {
		logger.Warn("Could not resolve latest commit", "source", src.String(), "error", err)
	}

	dir, err := os.MkdirTemp("", "docindex-github-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	paths, err := fetcher.DownloadAll(ctx, dir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	fmt.Printf("Fetched %d documents from %s\n", len(paths), src)
	return paths, cleanup, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := app.NewLogger(os.Stderr, verbose)

	index, err := app.OpenIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	stats, err := index.Stats(ctx, indexName)
	if errors.Is(err, searchindex.ErrIndexNotFound) {
		fmt.Printf("Index %q does not exist\n", indexName)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Index: %s\n", stats.Name)
	fmt.Printf("  Backend: %s\n", cfg.Index.Backend)
	fmt.Printf("  Records: %d\n", stats.RecordCount)
	return nil
}

func addChunkFlags(cmd *cobra.Command) {
	cmd.Flags().Int("chunk-size", chunker.DefaultMaxChunkSize, "maximum chunk size in characters")
	cmd.Flags().Int("overlap", chunker.DefaultOverlap, "chunk overlap in characters")
}

// chunkSettings reads the chunking flags. When only --chunk-size is given and
// the default overlap would not fit, the overlap scales down to a tenth of
// the chunk size.
func chunkSettings(cmd *cobra.Command) (size, overlap int, err error) {
	if size, err = cmd.Flags().GetInt("chunk-size"); err != nil {
		return 0, 0, err
	}
	if overlap, err = cmd.Flags().GetInt("overlap"); err != nil {
		return 0, 0, err
	}
	if !cmd.Flags().Changed("overlap") && overlap >= size {
		overlap = size / 10
	}
	return size, overlap, nil
}
