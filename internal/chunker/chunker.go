// Package chunker splits document text into bounded, overlapping passages
// used as the retrieval unit.
package chunker

import (
	"fmt"
	"unicode"
)

// Chunk is a bounded span of a document's text. Start and End are rune
// offsets into the source; Text is the exact span content.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Start      int
	End        int
	Text       string
}

// ChunkID derives the deterministic chunk identifier from the owning
// document id and the chunk's start offset.
func ChunkID(documentID string, ordinal, start int) string {
	return fmt.Sprintf("%s#%d@%d", documentID, ordinal, start)
}

// Chunker splits text into chunks of at most Size runes, with Overlap
// runes shared between adjacent chunks. Boundaries prefer whitespace or
// sentence breaks found within Lookback runes before the hard cutoff.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// New creates a Chunker. Size must be positive and overlap must be less
// than size; out-of-range values are clamped to safe defaults.
func New(size, overlap, lookback int) *Chunker {
	if size <= 0 {
		size = 300
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	if lookback < 0 || lookback >= size {
		lookback = size / 10
	}
	return &Chunker{size: size, overlap: overlap, lookback: lookback}
}

// Split splits a document's text into chunks. Identical input always
// produces identical chunk boundaries. An empty document yields no
// chunks; a document shorter than the chunk size yields exactly one.
func (c *Chunker) Split(documentID, text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.adjustBoundary(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			ID:         ChunkID(documentID, len(chunks), start),
			DocumentID: documentID,
			Ordinal:    len(chunks),
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// adjustBoundary searches backward from the hard cutoff for a preferred
// split point. Sentence breaks win over plain whitespace; a hard cut is
// the fallback when the lookback window has neither.
func (c *Chunker) adjustBoundary(runes []rune, start, end int) int {
	limit := end - c.lookback
	if limit <= start {
		limit = start + 1
	}

	sentence := -1
	space := -1
	for i := end - 1; i >= limit; i-- {
		r := runes[i]
		if sentence < 0 && i > 0 && isSentenceEnd(runes[i-1]) && unicode.IsSpace(r) {
			sentence = i
		}
		if space < 0 && unicode.IsSpace(r) {
			space = i
		}
		if sentence >= 0 {
			break
		}
	}

	cut := end
	if sentence >= 0 {
		cut = sentence
	} else if space >= 0 {
		cut = space
	}

	// The boundary must leave room past the overlap or the next chunk
	// would start at or before this one.
	if cut <= start+c.overlap {
		return end
	}
	return cut
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n':
		return true
	}
	return false
}
