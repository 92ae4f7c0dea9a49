package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Markdown extracts sections from Markdown documents. Each H1 or H2 section
// becomes one page whose first line is the heading text. Content before the
// first heading becomes a page of its own.
type Markdown struct {
	fs     afs.Service
	parser goldmark.Markdown
}

// NewMarkdown creates a Markdown extractor reading through fs.
func NewMarkdown(fs afs.Service) *Markdown {
	if fs == nil {
		fs = afs.New()
	}
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Markdown{fs: fs, parser: md}
}

// Extract downloads the document at ref and returns its sections.
func (m *Markdown) Extract(ctx context.Context, ref string) (*Analysis, error) {
	data, err := m.fs.DownloadWithURL(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", ref, err)
	}
	return m.Parse(data)
}

// section marks where a heading starts in the source and where its body begins.
type section struct {
	title     string
	start     int
	bodyStart int
}

// Parse splits source at H1 and H2 boundaries.
func (m *Markdown) Parse(source []byte) (*Analysis, error) {
	doc := m.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var sections []section
	collectSections(doc, source, tree.Items, &sections)

	analysis := &Analysis{}
	if len(sections) == 0 {
		if lines := splitLines(string(source)); len(lines) > 0 {
			analysis.Pages = append(analysis.Pages, Page{Lines: lines})
		}
		return analysis, nil
	}

	if lines := splitLines(string(source[:sections[0].start])); len(lines) > 0 {
		analysis.Pages = append(analysis.Pages, Page{Lines: lines})
	}

	for i, s := range sections {
		end := len(source)
		if i+1 < len(sections) {
			end = sections[i+1].start
		}

		lines := []string{s.title}
		if s.bodyStart < end {
			body := strings.Trim(string(source[s.bodyStart:end]), "\n")
			if strings.TrimSpace(body) != "" {
				lines = append(lines, splitLines(body)...)
			}
		}
		analysis.Pages = append(analysis.Pages, Page{Lines: lines})
	}

	return analysis, nil
}

// collectSections flattens TOC items in document order.
func collectSections(doc ast.Node, source []byte, items toc.Items, out *[]section) {
	for _, item := range items {
		if heading := findHeaderByID(doc, string(item.ID)); heading != nil && heading.Lines().Len() > 0 {
			first := heading.Lines().At(0)
			last := heading.Lines().At(heading.Lines().Len() - 1)
			*out = append(*out, section{
				title:     strings.TrimSpace(string(item.Title)),
				start:     lineStart(source, first.Start),
				bodyStart: bodyStart(source, last.Stop),
			})
		}
		if len(item.Items) > 0 {
			collectSections(doc, source, item.Items, out)
		}
	}
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart returns the offset of the beginning of the line containing pos.
func lineStart(source []byte, pos int) int {
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// bodyStart returns the offset just past the heading line ending at pos,
// skipping a setext underline if present.
func bodyStart(source []byte, pos int) int {
	next := nextLine(source, pos)
	if next >= len(source) {
		return len(source)
	}

	end := nextLine(source, next)
	if isSetextUnderline(strings.TrimSpace(string(source[next:end]))) {
		return end
	}
	return next
}

func isSetextUnderline(line string) bool {
	if line == "" {
		return false
	}
	return strings.Trim(line, "=") == "" || strings.Trim(line, "-") == ""
}

func nextLine(source []byte, pos int) int {
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(source)
}
