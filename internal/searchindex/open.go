package searchindex

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Qdrant     QdrantConfig
	SQLitePath string
	Dimensions int
	Logger     *slog.Logger
}

// Open connects to the configured backend using DefaultSchema.
func Open(ctx context.Context, opts Options) (Backend, error) {
	schema := DefaultSchema(opts.Dimensions)

	switch opts.Backend {
	case BackendQdrant, "":
		q, err := NewQdrant(ctx, opts.Qdrant, schema, opts.Logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	case BackendSQLite:
		s, err := NewSQLite(ctx, opts.SQLitePath, schema, opts.Logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
