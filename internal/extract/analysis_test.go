package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func page(lines ...string) Page {
	return Page{Lines: lines}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name     string
		analysis *Analysis
		expected string
	}{
		{
			name:     "first line qualifies",
			analysis: &Analysis{Pages: []Page{page("  Annual Report  ", "Body text.")}},
			expected: "Annual Report",
		},
		{
			name:     "first line is a sentence",
			analysis: &Analysis{Pages: []Page{page("This is a sentence.", "1 Introduction", "Overview")}},
			expected: "Overview",
		},
		{
			name:     "blank leading lines",
			analysis: &Analysis{Pages: []Page{page("", "   ", "Heading")}},
			expected: "Heading",
		},
		{
			name:     "first line starting with digit still wins",
			analysis: &Analysis{Pages: []Page{page("2024 Results", "Summary")}},
			expected: "2024 Results",
		},
		{
			name:     "only the first five lines are scanned",
			analysis: &Analysis{Pages: []Page{page("a.", "b.", "1 c", "d.", "", "Late Title")}},
			expected: "fallback",
		},
		{
			name:     "too long",
			analysis: &Analysis{Pages: []Page{page(strings.Repeat("x", 100))}},
			expected: "fallback",
		},
		{
			name:     "just under the limit",
			analysis: &Analysis{Pages: []Page{page(strings.Repeat("é", 99))}},
			expected: strings.Repeat("é", 99),
		},
		{
			name:     "no pages",
			analysis: &Analysis{},
			expected: "fallback",
		},
		{
			name:     "empty first page",
			analysis: &Analysis{Pages: []Page{{}, page("Second Page Title")}},
			expected: "fallback",
		},
		{
			name:     "nil analysis",
			analysis: nil,
			expected: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Title(tt.analysis, "fallback"))
		})
	}
}

func TestPageTexts(t *testing.T) {
	a := &Analysis{Pages: []Page{page("line one", "line two"), {}, page("last")}}

	texts := PageTexts(a)

	assert.Equal(t, []string{"line one\nline two\n", "", "last\n"}, texts)
	assert.Nil(t, PageTexts(nil))
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "report", FileStem("file:///tmp/pdfdocuments/report.pdf"))
	assert.Equal(t, "report.final", FileStem("s3://bucket/docs/report.final.pdf"))
	assert.Equal(t, "guide", FileStem("https://host/c/guide.md?sig=abc"))
	assert.Equal(t, "README", FileStem("README"))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines("a\r\n\r\nb\n\n"))
	assert.Equal(t, []string{"2023 Annual Report", "Body."}, splitLines("\n2023 Annual Report\n  \nBody.\n"))
	assert.Nil(t, splitLines("  \n\n"))
}
