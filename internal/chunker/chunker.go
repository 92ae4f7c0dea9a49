// Package chunker splits page-level document text into overlapping,
// size-bounded chunks with stable 1-based numbering.
package chunker

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxChunkSize is the maximum chunk length in characters.
	DefaultMaxChunkSize = 2000

	// DefaultOverlap is the number of characters carried from the end of one
	// chunk into the start of the next.
	DefaultOverlap = 200
)

// ErrInvalidSize is returned when maxChunkSize or overlap are out of range.
var ErrInvalidSize = errors.New("invalid chunk size or overlap")

// Chunk is a bounded slice of a document's concatenated page text.
type Chunk struct {
	Text   string // Chunk content, including any carried overlap
	Number int    // 1-based position within the document
}

// Split concatenates pageTexts in order, each followed by a newline, and
// slices the result into chunks of at most maxChunkSize characters.
// Consecutive chunks share up to overlap characters.
//
// Lengths are counted in runes so a chunk never ends inside a UTF-8 sequence.
// Split is pure: identical input always yields identical output.
func Split(pageTexts []string, maxChunkSize, overlap int) ([]Chunk, error) {
	if maxChunkSize <= 0 || overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf("%w: maxChunkSize=%d overlap=%d", ErrInvalidSize, maxChunkSize, overlap)
	}

	chunks := make([]Chunk, 0)
	number := 1
	var buf []rune

	for _, page := range pageTexts {
		text := []rune(page)

		// Page does not fit: close the current chunk at the page boundary
		if len(buf)+len(text) > maxChunkSize && len(buf) > 0 {
			chunks = append(chunks, Chunk{Text: string(buf), Number: number})
			number++
			buf = tail(buf, overlap)
		}

		buf = append(buf, text...)
		buf = append(buf, '\n')

		// A single page may be larger than a chunk; cut it down in place
		for len(buf) > maxChunkSize {
			chunks = append(chunks, Chunk{Text: string(buf[:maxChunkSize]), Number: number})
			number++
			buf = append([]rune(nil), buf[maxChunkSize-overlap:]...)
		}
	}

	if len(buf) > 0 {
		chunks = append(chunks, Chunk{Text: string(buf), Number: number})
	}

	return chunks, nil
}

// tail returns a copy of the last n runes of buf, or all of buf when shorter.
func tail(buf []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(buf) <= n {
		return append([]rune(nil), buf...)
	}
	return append([]rune(nil), buf[len(buf)-n:]...)
}
