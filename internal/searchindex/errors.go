package searchindex

import "errors"

var (
	ErrUnreachable       = errors.New("search index backend unreachable")
	ErrIndexNotFound     = errors.New("index not found")
	ErrInvalidIndexName  = errors.New("invalid index name")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidKey        = errors.New("invalid record key")
	ErrEmptyContent      = errors.New("record content is empty")
	ErrUnknownBackend    = errors.New("unknown search index backend")
)
