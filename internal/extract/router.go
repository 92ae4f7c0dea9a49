package extract

import (
	"context"
	"fmt"

	"github.com/viant/afs"
)

// Router dispatches to a format-specific Extractor by file extension.
type Router struct {
	extractors map[string]Extractor
}

// NewRouter returns a Router handling .pdf, .md and .markdown references.
func NewRouter(fs afs.Service) *Router {
	if fs == nil {
		fs = afs.New()
	}
	md := NewMarkdown(fs)
	r := &Router{extractors: map[string]Extractor{}}
	r.Register(".pdf", NewPDF(fs))
	r.Register(".md", md)
	r.Register(".markdown", md)
	return r
}

// Register installs e for references ending in ext (including the dot).
func (r *Router) Register(ext string, e Extractor) {
	r.extractors[ext] = e
}

// Supports reports whether a reference or path has a registered extension.
func (r *Router) Supports(ref string) bool {
	_, ok := r.extractors[extension(ref)]
	return ok
}

// Extract analyses ref with the extractor registered for its extension.
func (r *Router) Extract(ctx context.Context, ref string) (*Analysis, error) {
	e, ok := r.extractors[extension(ref)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ref)
	}
	return e.Extract(ctx, ref)
}
