package indexer

import (
	"errors"
	"fmt"
)

var (
	ErrUploaderRequired  = errors.New("uploader is required")
	ErrExtractorRequired = errors.New("extractor is required")
	ErrEmbedderRequired  = errors.New("embedder is required")
	ErrIndexRequired     = errors.New("index is required")
	ErrInvalidOption     = errors.New("invalid pipeline option")
	ErrWorkerPanic       = errors.New("worker panicked")
)

// Stage identifies the pipeline step that failed.
type Stage string

const (
	StageUpload    Stage = "upload"
	StageExtract   Stage = "extract"
	StageEmbed     Stage = "embed"
	StageAssemble  Stage = "assemble"
	StageProvision Stage = "provision"
	StageIngest    Stage = "ingest"
)

// PipelineError is a fatal failure that aborted a run.
type PipelineError struct {
	Stage Stage
	Input string // File path, document reference, index name or batch range
	Chunk int    // Chunk number for embed failures, otherwise zero
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("%s failed for %s (chunk %d): %v", e.Stage, e.Input, e.Chunk, e.Err)
	}
	if e.Input != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Input, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
