// Package indexer runs the ingestion pipeline: upload, extract, chunk, embed,
// provision and bulk write.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/bull/docindex/internal/chunker"
	"github.com/bull/docindex/internal/extract"
	"github.com/bull/docindex/internal/metadata"
	"github.com/bull/docindex/internal/searchindex"
)

const (
	// DefaultContainer is the storage container source files are uploaded to.
	DefaultContainer = "pdfdocuments"

	// DefaultBatchSize is the number of records per ingest request.
	DefaultBatchSize = 100

	// DefaultWorkers is the number of documents processed concurrently.
	DefaultWorkers = 1
)

// Uploader copies local files into blob storage.
type Uploader interface {
	Upload(ctx context.Context, container string, paths []string) ([]string, error)
}

// Extractor analyses a stored document.
type Extractor interface {
	Extract(ctx context.Context, ref string) (*extract.Analysis, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index provisions and loads a search index.
type Index interface {
	CreateIndex(ctx context.Context, name string) error
	Ingest(ctx context.Context, name string, records []searchindex.Record) ([]searchindex.Result, error)
}

// RunResult summarizes a completed run.
type RunResult struct {
	Submitted int
	Succeeded int
	Failures  []FailedRecord
	Documents []DocumentSummary
	Batches   int
	Duration  time.Duration
}

// FailedRecord is a record rejected by the index.
type FailedRecord struct {
	ID          string
	Filepath    string
	ChunkNumber int
	Reason      string
}

// DocumentSummary describes one processed document.
type DocumentSummary struct {
	Path      string
	Reference string
	Title     string
	Chunks    int
}

// Pipeline coordinates one batch ingestion run over a fixed file list.
type Pipeline struct {
	uploader  Uploader
	extractor Extractor
	embedder  Embedder
	index     Index
	logger    *slog.Logger

	container    string
	workers      int
	maxChunkSize int
	overlap      int
	batchSize    int
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithWorkers sets how many documents are extracted and embedded concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidOption, n)
		}
		p.workers = n
		return nil
	}
}

// WithContainer sets the storage container name.
func WithContainer(name string) Option {
	return func(p *Pipeline) error {
		if name == "" {
			return fmt.Errorf("%w: empty container name", ErrInvalidOption)
		}
		p.container = name
		return nil
	}
}

// WithChunking overrides the chunk size and overlap, in characters.
func WithChunking(maxChunkSize, overlap int) Option {
	return func(p *Pipeline) error {
		if maxChunkSize <= 0 || overlap < 0 || overlap >= maxChunkSize {
			return fmt.Errorf("%w: %v", ErrInvalidOption, chunker.ErrInvalidSize)
		}
		p.maxChunkSize = maxChunkSize
		p.overlap = overlap
		return nil
	}
}

// WithBatchSize sets the number of records per ingest request.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOption, n)
		}
		p.batchSize = n
		return nil
	}
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(uploader Uploader, extractor Extractor, embedder Embedder, index Index, opts ...Option) (*Pipeline, error) {
	if uploader == nil {
		return nil, ErrUploaderRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	p := &Pipeline{
		uploader:     uploader,
		extractor:    extractor,
		embedder:     embedder,
		index:        index,
		logger:       slog.Default(),
		container:    DefaultContainer,
		workers:      DefaultWorkers,
		maxChunkSize: chunker.DefaultMaxChunkSize,
		overlap:      chunker.DefaultOverlap,
		batchSize:    DefaultBatchSize,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// run is the state carried between stages of one Run call.
type run struct {
	indexName string
	paths     []string
	refs      []string
	documents []document
	records   []pendingRecord
}

// document is the per-document output of the extract stage.
type document struct {
	path    string
	ref     string
	title   string
	chunks  []chunker.Chunk
	vectors [][]float32
}

// pendingRecord keeps the source details needed to report a rejection.
type pendingRecord struct {
	record      searchindex.Record
	chunkNumber int
}

// Run executes every stage in order. Each stage finishes for all inputs
// before the next begins. Upload, extract, embed and provision failures
// abort the run with a *PipelineError; records rejected by the index are
// reported in RunResult.Failures.
func (p *Pipeline) Run(ctx context.Context, indexName string, paths []string) (*RunResult, error) {
	start := time.Now()
	state := &run{indexName: indexName, paths: paths}

	stages := []func(context.Context, *run) error{
		p.upload,
		p.process,
		p.assemble,
		p.provision,
	}
	for _, stage := range stages {
		if err := stage(ctx, state); err != nil {
			p.logger.Error("Pipeline aborted", "error", err)
			return nil, err
		}
	}

	result, err := p.write(ctx, state)
	if err != nil {
		p.logger.Error("Pipeline aborted", "error", err)
		return nil, err
	}

	for _, doc := range state.documents {
		result.Documents = append(result.Documents, DocumentSummary{
			Path:      doc.path,
			Reference: doc.ref,
			Title:     doc.title,
			Chunks:    len(doc.chunks),
		})
	}
	result.Duration = time.Since(start)

	p.logger.Info("Indexing complete",
		"index", indexName,
		"documents", len(state.documents),
		"submitted", result.Submitted,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures),
		"duration", result.Duration,
	)
	return result, nil
}

// upload stores all source files and keeps their references in input order.
func (p *Pipeline) upload(ctx context.Context, state *run) error {
	refs, err := p.uploader.Upload(ctx, p.container, state.paths)
	if err != nil {
		return &PipelineError{Stage: StageUpload, Input: p.container, Err: err}
	}
	if len(refs) != len(state.paths) {
		return &PipelineError{
			Stage: StageUpload,
			Input: p.container,
			Err:   fmt.Errorf("got %d references for %d files", len(refs), len(state.paths)),
		}
	}

	state.refs = refs
	p.logger.Info("Uploaded documents", "count", len(refs), "container", p.container)
	return nil
}

// process extracts, chunks and embeds every document on a bounded pool.
// The first failure cancels the remaining work.
func (p *Pipeline) process(ctx context.Context, state *run) error {
	state.documents = make([]document, len(state.refs))
	if len(state.refs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(min(p.workers, len(state.refs)))
	if err != nil {
		return &PipelineError{Stage: StageExtract, Err: fmt.Errorf("create worker pool: %w", err)}
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := range state.refs {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			// ants swallows task panics, so surface them as run failures.
			defer func() {
				if r := recover(); r != nil {
					fail(&PipelineError{Stage: StageExtract, Input: state.refs[i], Err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)})
				}
			}()
			if ctx.Err() != nil {
				return
			}
			doc, err := p.processDocument(ctx, state.paths[i], state.refs[i])
			if err != nil {
				fail(err)
				return
			}
			state.documents[i] = *doc
		})
		if submitErr != nil {
			wg.Done()
			fail(&PipelineError{Stage: StageExtract, Input: state.refs[i], Err: submitErr})
			break
		}
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = &PipelineError{Stage: StageExtract, Err: ctx.Err()}
	}
	return firstErr
}

// processDocument handles extraction, chunking and embedding for one document.
func (p *Pipeline) processDocument(ctx context.Context, path, ref string) (*document, error) {
	analysis, err := p.extractor.Extract(ctx, ref)
	if err != nil {
		return nil, &PipelineError{Stage: StageExtract, Input: ref, Err: err}
	}

	title := extract.Title(analysis, extract.FileStem(path))
	chunks, err := chunker.Split(extract.PageTexts(analysis), p.maxChunkSize, p.overlap)
	if err != nil {
		return nil, &PipelineError{Stage: StageExtract, Input: ref, Err: err}
	}
	chunks = dropBlankChunks(chunks)
	p.logger.Debug("Chunked document", "reference", ref, "title", title, "chunks", len(chunks))

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vec, err := p.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, &PipelineError{Stage: StageEmbed, Input: ref, Chunk: chunk.Number, Err: err}
		}
		vectors[i] = vec
	}

	p.logger.Info("Processed document", "reference", ref, "chunks", len(chunks))
	return &document{
		path:    path,
		ref:     ref,
		title:   title,
		chunks:  chunks,
		vectors: vectors,
	}, nil
}

// dropBlankChunks removes whitespace-only chunks, such as those produced by
// blank pages, and renumbers the rest from 1.
func dropBlankChunks(chunks []chunker.Chunk) []chunker.Chunk {
	kept := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		chunk.Number = len(kept) + 1
		kept = append(kept, chunk)
	}
	return kept
}

// assemble builds records in document order, then chunk order.
func (p *Pipeline) assemble(_ context.Context, state *run) error {
	for _, doc := range state.documents {
		source := filepath.Base(doc.path)
		for i, chunk := range doc.chunks {
			title := chunkTitle(doc.title, chunk.Number, len(doc.chunks))

			meta, err := metadata.Meta{
				Source:            source,
				ChunkNumber:       chunk.Number,
				DocumentReference: doc.ref,
				DocumentTitle:     doc.title,
				ChunkTitle:        title,
			}.Encode()
			if err != nil {
				return &PipelineError{Stage: StageAssemble, Input: doc.ref, Chunk: chunk.Number, Err: err}
			}

			state.records = append(state.records, pendingRecord{
				record: searchindex.Record{
					ID:            uuid.New().String(),
					Title:         title,
					Content:       chunk.Text,
					ContentVector: doc.vectors[i],
					Filepath:      source,
					MetaJSON:      meta,
				},
				chunkNumber: chunk.Number,
			})
		}
	}
	return nil
}

// chunkTitle suffixes the part number only when a document has several chunks.
func chunkTitle(title string, number, total int) string {
	if total > 1 {
		return fmt.Sprintf("%s - Part %d", title, number)
	}
	return title
}

// provision replaces the target index.
func (p *Pipeline) provision(ctx context.Context, state *run) error {
	if err := p.index.CreateIndex(ctx, state.indexName); err != nil {
		return &PipelineError{Stage: StageProvision, Input: state.indexName, Err: err}
	}
	p.logger.Info("Provisioned index", "index", state.indexName)
	return nil
}

// write submits records in fixed-size batches, one batch at a time.
func (p *Pipeline) write(ctx context.Context, state *run) (*RunResult, error) {
	result := &RunResult{}

	for start := 0; start < len(state.records); start += p.batchSize {
		end := min(start+p.batchSize, len(state.records))
		pending := state.records[start:end]
		batchRange := fmt.Sprintf("records %d-%d", start, end-1)

		batch := make([]searchindex.Record, len(pending))
		for i, r := range pending {
			batch[i] = r.record
		}

		results, err := p.index.Ingest(ctx, state.indexName, batch)
		if err != nil {
			return nil, &PipelineError{Stage: StageIngest, Input: batchRange, Err: err}
		}
		if len(results) != len(batch) {
			return nil, &PipelineError{
				Stage: StageIngest,
				Input: batchRange,
				Err:   fmt.Errorf("got %d results for %d records", len(results), len(batch)),
			}
		}

		result.Batches++
		result.Submitted += len(batch)

		for i, r := range results {
			if r.Succeeded {
				continue
			}
			failed := FailedRecord{
				ID:          pending[i].record.ID,
				Filepath:    pending[i].record.Filepath,
				ChunkNumber: pending[i].chunkNumber,
				Reason:      r.Reason,
			}
			result.Failures = append(result.Failures, failed)
			p.logger.Warn("Record rejected",
				"id", failed.ID,
				"file", failed.Filepath,
				"chunk", failed.ChunkNumber,
				"reason", failed.Reason,
			)
		}

		p.logger.Debug("Submitted batch", "range", batchRange)
	}

	result.Succeeded = result.Submitted - len(result.Failures)
	return result, nil
}
