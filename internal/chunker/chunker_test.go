package chunker

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"
)

// TestSplit_Empty verifies that no pages produce no chunks.
func TestSplit_Empty(t *testing.T) {
	chunks, err := Split(nil, 10, 2)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected 0 chunks, got %d", len(chunks))
	}
}

// TestSplit_SingleShortPage verifies a page that fits becomes one chunk.
func TestSplit_SingleShortPage(t *testing.T) {
	chunks, err := Split([]string{"hello"}, 10, 2)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "hello\n" {
		t.Errorf("Chunk text: expected %q, got %q", "hello\n", chunks[0].Text)
	}
	if chunks[0].Number != 1 {
		t.Errorf("Chunk number: expected 1, got %d", chunks[0].Number)
	}
}

// TestSplit_OversizedPage verifies a single page longer than a chunk is cut
// with the overlap window carried forward.
func TestSplit_OversizedPage(t *testing.T) {
	chunks, err := Split([]string{"abcdefghijklmnopqrstuvwxy"}, 10, 3)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	expected := []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxy\n"}
	if len(chunks) != len(expected) {
		t.Fatalf("Expected %d chunks, got %d", len(expected), len(chunks))
	}
	for i, want := range expected {
		if chunks[i].Text != want {
			t.Errorf("Chunk %d text: expected %q, got %q", i, want, chunks[i].Text)
		}
		if chunks[i].Number != i+1 {
			t.Errorf("Chunk %d number: expected %d, got %d", i, i+1, chunks[i].Number)
		}
	}
}

// TestSplit_PageBoundary verifies chunks close at page boundaries and carry
// the trailing overlap of the previous chunk.
func TestSplit_PageBoundary(t *testing.T) {
	chunks, err := Split([]string{"aaaa", "bbbb", "cccc"}, 10, 2)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "aaaa\nbbbb\n" {
		t.Errorf("Chunk 0 text: got %q", chunks[0].Text)
	}
	if chunks[1].Text != "b\ncccc\n" {
		t.Errorf("Chunk 1 text: got %q", chunks[1].Text)
	}
}

// TestSplit_ZeroOverlap verifies nothing is carried across a boundary.
func TestSplit_ZeroOverlap(t *testing.T) {
	chunks, err := Split([]string{"aaaa", "bbbb", "cccc"}, 10, 0)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Text != "cccc\n" {
		t.Errorf("Chunk 1 should not carry previous text, got %q", chunks[1].Text)
	}

	chunks, err = Split([]string{strings.Repeat("x", 25)}, 10, 0)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].Text != "xxxxx\n" {
		t.Errorf("Last chunk: expected %q, got %q", "xxxxx\n", chunks[2].Text)
	}
}

// TestSplit_DefaultSizes covers a 3000 character page at the default sizes.
func TestSplit_DefaultSizes(t *testing.T) {
	page := strings.Repeat("p", 3000)
	chunks, err := Split([]string{page}, DefaultMaxChunkSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if got := utf8.RuneCountInString(chunks[0].Text); got != 2000 {
		t.Errorf("Chunk 0 length: expected 2000, got %d", got)
	}
	if got := utf8.RuneCountInString(chunks[1].Text); got != 1201 {
		t.Errorf("Chunk 1 length: expected 1201, got %d", got)
	}
}

// TestSplit_Multibyte verifies cuts never split a UTF-8 sequence.
func TestSplit_Multibyte(t *testing.T) {
	chunks, err := Split([]string{"ééééé"}, 3, 1)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	expected := []string{"ééé", "ééé", "é\n"}
	if len(chunks) != len(expected) {
		t.Fatalf("Expected %d chunks, got %d", len(expected), len(chunks))
	}
	for i, want := range expected {
		if !utf8.ValidString(chunks[i].Text) {
			t.Errorf("Chunk %d is not valid UTF-8", i)
		}
		if chunks[i].Text != want {
			t.Errorf("Chunk %d: expected %q, got %q", i, want, chunks[i].Text)
		}
	}
}

// TestSplit_InvalidSize verifies argument validation.
func TestSplit_InvalidSize(t *testing.T) {
	cases := []struct {
		name    string
		max     int
		overlap int
	}{
		{"zero max", 0, 0},
		{"negative overlap", 10, -1},
		{"overlap equals max", 10, 10},
		{"overlap exceeds max", 10, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split([]string{"text"}, tc.max, tc.overlap)
			if !errors.Is(err, ErrInvalidSize) {
				t.Errorf("Expected ErrInvalidSize, got %v", err)
			}
		})
	}
}

// TestSplit_Deterministic verifies repeated calls produce identical output.
func TestSplit_Deterministic(t *testing.T) {
	pages := []string{strings.Repeat("alpha ", 300), "beta", strings.Repeat("gamma ", 500)}
	first, err := Split(pages, 500, 50)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	second, err := Split(pages, 500, 50)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("Chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Chunk %d differs between runs", i)
		}
	}
}

// TestSplit_Properties checks numbering, size bound, overlap and full
// coverage over generated inputs.
func TestSplit_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sizes := []struct{ max, overlap int }{
		{1, 0}, {7, 3}, {50, 0}, {50, 49}, {200, 20}, {2000, 200},
	}

	for iter := 0; iter < 30; iter++ {
		pages := randomPages(rng)
		for _, size := range sizes {
			chunks, err := Split(pages, size.max, size.overlap)
			if err != nil {
				t.Fatalf("Split failed: %v", err)
			}

			var rebuilt strings.Builder
			for i, chunk := range chunks {
				text := []rune(chunk.Text)
				if chunk.Number != i+1 {
					t.Fatalf("max=%d overlap=%d: chunk %d numbered %d", size.max, size.overlap, i, chunk.Number)
				}
				if len(text) > size.max {
					t.Fatalf("max=%d overlap=%d: chunk %d has %d runes", size.max, size.overlap, i, len(text))
				}
				if i == 0 {
					rebuilt.WriteString(chunk.Text)
					continue
				}

				prev := []rune(chunks[i-1].Text)
				k := min(size.overlap, len(prev))
				if string(text[:k]) != string(prev[len(prev)-k:]) {
					t.Fatalf("max=%d overlap=%d: chunk %d does not start with previous tail", size.max, size.overlap, i)
				}
				rebuilt.WriteString(string(text[k:]))
			}

			if want := joinPages(pages); rebuilt.String() != want {
				t.Fatalf("max=%d overlap=%d: rebuilt content differs from input", size.max, size.overlap)
			}
		}
	}
}

func randomPages(rng *rand.Rand) []string {
	alphabet := []rune("abcdefghij klmnop.\nÄöü漢字")
	pages := make([]string, rng.Intn(6)+1)
	for i := range pages {
		n := rng.Intn(3000)
		runes := make([]rune, n)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		pages[i] = string(runes)
	}
	return pages
}

func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}
