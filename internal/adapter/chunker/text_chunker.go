package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order when looking for a place to end a chunk.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune("; "),
	[]rune(", "),
	[]rune(" "),
}

var _ port.Chunker = (*TextChunker)(nil)

// TextChunker splits page text into overlapping character windows. Window
// ends snap back to the latest paragraph, line, sentence or word break in the
// second half of the window; neighbouring chunks always share exactly overlap
// characters.
type TextChunker struct {
	size    int
	overlap int
}

// Span is a half-open rune range of the split text.
type Span struct {
	Start int
	End   int
}

func NewTextChunker(size, overlap int) (*TextChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [1, %d), got %d", size, overlap)
	}
	return &TextChunker{size: size, overlap: overlap}, nil
}

func (c *TextChunker) Size() int    { return c.size }
func (c *TextChunker) Overlap() int { return c.overlap }

// Chunk splits every page of doc. Indices run across the whole document.
func (c *TextChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	source := doc.Source.Name()

	for _, page := range doc.Pages {
		runes := []rune(page.Text)
		for _, span := range c.spans(runes) {
			idx := len(chunks)
			chunks = append(chunks, domain.Chunk{
				ID:     generateChunkID(doc.ID, page.Number, idx),
				DocID:  doc.ID,
				Index:  idx,
				Page:   page.Number,
				Offset: span.Start,
				Source: source,
				Text:   string(runes[span.Start:span.End]),
			})
		}
	}

	return chunks, nil
}

// Split returns the chunk texts of text in order.
func (c *TextChunker) Split(text string) []string {
	runes := []rune(text)
	spans := c.spans(runes)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.Start:s.End])
	}
	return out
}

// Spans returns the rune ranges Split would produce.
func (c *TextChunker) Spans(text string) []Span {
	return c.spans([]rune(text))
}

func (c *TextChunker) spans(runes []rune) []Span {
	if strings.TrimSpace(string(runes)) == "" {
		return nil
	}

	var spans []Span
	n := len(runes)
	start := 0

	for {
		end := start + c.size
		if end >= n {
			spans = append(spans, Span{Start: start, End: n})
			return spans
		}

		end = c.boundary(runes, start, end)
		spans = append(spans, Span{Start: start, End: end})
		start = end - c.overlap
	}
}

// boundary picks the end of the window starting at start. Candidates must
// leave the chunk at least half full and longer than the overlap so the
// next window always advances.
func (c *TextChunker) boundary(runes []rune, start, hardEnd int) int {
	minEnd := start + c.size/2
	if minEnd <= start+c.overlap {
		minEnd = start + c.overlap + 1
	}

	for _, sep := range separators {
		for end := hardEnd; end >= minEnd; end-- {
			if hasSuffixAt(runes, end, sep) {
				return end
			}
		}
	}
	return hardEnd
}

// hasSuffixAt reports whether runes[:end] ends with sep.
func hasSuffixAt(runes []rune, end int, sep []rune) bool {
	if end < len(sep) {
		return false
	}
	off := end - len(sep)
	for i, r := range sep {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}

func generateChunkID(docID string, page, index int) string {
	data := fmt.Sprintf("%s:%d:%d", docID, page, index)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
