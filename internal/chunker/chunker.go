package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Chunk is one bounded span of a document's normalized text. Start and End
// are inclusive-exclusive rune offsets into that text.
type Chunk struct {
	ID    string
	Index int
	Start int
	End   int
	Text  string
}

// Splitter cuts text into overlapping, offset-tracked chunks. Sizes are in
// runes. Boundary selection prefers a paragraph or sentence break within the
// tolerance window before the size limit, falling back to a hard cut.
type Splitter struct {
	size      int
	overlap   int
	tolerance int
}

func NewSplitter(size, overlap, tolerance int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if tolerance < 0 || tolerance >= size {
		tolerance = size / 5
	}
	return &Splitter{size: size, overlap: overlap, tolerance: tolerance}
}

// ChunkID derives the deterministic id for a chunk of the given document.
// Identical (docID, index) pairs always produce the same id, so re-ingesting
// a document overwrites its records instead of duplicating them.
func ChunkID(docID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, index)))
	return hex.EncodeToString(sum[:])
}

// Split segments text into chunks. Empty input yields nil; input no longer
// than one chunk size yields a single chunk spanning the whole text.
func (s *Splitter) Split(docID, text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.size {
		return []Chunk{{
			ID:    ChunkID(docID, 0),
			Index: 0,
			Start: 0,
			End:   len(runes),
			Text:  text,
		}}
	}

	var chunks []Chunk
	start := 0
	for index := 0; start < len(runes); index++ {
		end := start + s.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakBefore(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			ID:    ChunkID(docID, index),
			Index: index,
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end >= len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			// Guarantee forward progress even with degenerate settings.
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakBefore looks backwards from limit, within the tolerance window, for a
// natural boundary: first a blank line, then a sentence end. It returns the
// cut position, or limit itself when no boundary is found.
func (s *Splitter) breakBefore(runes []rune, start, limit int) int {
	floor := limit - s.tolerance
	if floor <= start {
		floor = start + 1
	}

	// Paragraph break: cut right after "\n\n".
	if idx := lastParagraphBreak(runes, floor, limit); idx > 0 {
		return idx
	}
	// Sentence break: cut right after terminal punctuation + space.
	for i := limit - 1; i >= floor; i-- {
		if isSentenceEnd(runes[i]) && i+1 < limit && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return limit
}

func lastParagraphBreak(runes []rune, floor, limit int) int {
	window := string(runes[floor:limit])
	idx := strings.LastIndex(window, "\n\n")
	if idx < 0 {
		return -1
	}
	return floor + len([]rune(window[:idx])) + 2
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
