package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/viant/afs"
)

// PDF extracts page text from PDF documents held in any afs-supported store.
type PDF struct {
	fs afs.Service
}

// NewPDF creates a PDF extractor reading through fs.
func NewPDF(fs afs.Service) *PDF {
	if fs == nil {
		fs = afs.New()
	}
	return &PDF{fs: fs}
}

// Extract downloads the document at ref and returns its pages.
func (p *PDF) Extract(ctx context.Context, ref string) (*Analysis, error) {
	data, err := p.fs.DownloadWithURL(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", ref, err)
	}
	return ParsePDF(data)
}

// ParsePDF reads the plain text of every page. Pages without content yield an
// empty Page so page numbering stays aligned with the source.
func ParsePDF(data []byte) (analysis *Analysis, err error) {
	// The pdf reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			analysis, err = nil, fmt.Errorf("%w: %v", ErrMalformedDocument, r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", ErrMalformedDocument)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	count := reader.NumPage()
	analysis = &Analysis{Pages: make([]Page, 0, count)}

	for i := 1; i <= count; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			analysis.Pages = append(analysis.Pages, Page{})
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		analysis.Pages = append(analysis.Pages, Page{Lines: splitLines(text)})
	}

	return analysis, nil
}
