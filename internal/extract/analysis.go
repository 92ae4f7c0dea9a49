// Package extract turns stored documents into ordered pages of text lines.
package extract

import (
	"context"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxTitleLength is the exclusive upper bound, in characters, for a line to
// qualify as a document title.
const maxTitleLength = 100

// titleScanLines is how many leading lines of the first page are considered
// when the very first line is not a usable title.
const titleScanLines = 5

// Analysis is the result of analysing one document.
type Analysis struct {
	Pages []Page
}

// Page is one page (or section) of a document, in reading order.
type Page struct {
	Lines []string
}

// Text returns every line of the page followed by a newline.
func (p Page) Text() string {
	var b strings.Builder
	for _, line := range p.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Extractor analyses the document stored at a reference URL.
type Extractor interface {
	Extract(ctx context.Context, ref string) (*Analysis, error)
}

// PageTexts returns the text of every page in order.
func PageTexts(a *Analysis) []string {
	if a == nil {
		return nil
	}
	texts := make([]string, len(a.Pages))
	for i, p := range a.Pages {
		texts[i] = p.Text()
	}
	return texts
}

// Title picks a document title from the first page.
//
// The first line wins if it is non-empty, shorter than 100 characters and
// does not end with a period. Otherwise the first of the leading five lines
// that also does not start with a digit is used. If nothing qualifies the
// fallback is returned.
func Title(a *Analysis, fallback string) string {
	if a == nil || len(a.Pages) == 0 || len(a.Pages[0].Lines) == 0 {
		return fallback
	}

	lines := a.Pages[0].Lines
	if first := strings.TrimSpace(lines[0]); titleCandidate(first) {
		return first
	}

	for _, line := range lines[:min(titleScanLines, len(lines))] {
		candidate := strings.TrimSpace(line)
		if !titleCandidate(candidate) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(candidate); unicode.IsDigit(r) {
			continue
		}
		return candidate
	}

	return fallback
}

func titleCandidate(line string) bool {
	n := utf8.RuneCountInString(line)
	return n > 0 && n < maxTitleLength && !strings.HasSuffix(line, ".")
}

// FileStem returns the file name of a reference without its extension.
// Query strings and fragments are ignored.
func FileStem(ref string) string {
	name := path.Base(stripQuery(ref))
	return strings.TrimSuffix(name, path.Ext(name))
}

// extension returns the lower-cased extension of a reference's file name.
func extension(ref string) string {
	return strings.ToLower(path.Ext(stripQuery(ref)))
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// splitLines splits text into lines, dropping carriage returns and blank
// lines. Extracted PDF text starts with a newline, so without this the first
// line of every page would be empty.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
