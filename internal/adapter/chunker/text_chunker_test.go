package chunker

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func newDefault(t *testing.T) *TextChunker {
	t.Helper()
	c, err := NewTextChunker(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	return c
}

func TestTextChunker_FixedWindows(t *testing.T) {
	c := newDefault(t)
	text := strings.Repeat("x", 2500)

	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1000, 1000, 900}, lengths(chunks))
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-200:], chunks[i][:200], "chunk %d overlap", i)
	}
}

func TestTextChunker_NeverExceedsSize(t *testing.T) {
	c, err := NewTextChunker(120, 30)
	require.NoError(t, err)

	for _, chunk := range c.Split(sampleText()) {
		assert.LessOrEqual(t, len([]rune(chunk)), 120)
	}
}

func TestTextChunker_SharesExactOverlap(t *testing.T) {
	c, err := NewTextChunker(120, 30)
	require.NoError(t, err)

	chunks := c.Split(sampleText())
	require.Greater(t, len(chunks), 2)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		assert.Equal(t, string(prev[len(prev)-30:]), string(cur[:30]))
	}
}

func TestTextChunker_Deterministic(t *testing.T) {
	c := newDefault(t)
	text := strings.Repeat(sampleText(), 10)

	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestTextChunker_ReconstructsInput(t *testing.T) {
	c, err := NewTextChunker(80, 20)
	require.NoError(t, err)
	text := sampleText()

	chunks := c.Split(text)
	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		b.WriteString(string([]rune(chunk)[20:]))
	}

	assert.Equal(t, stripSpace(text), stripSpace(b.String()))
	assert.Equal(t, text, b.String())
}

func TestTextChunker_PrefersParagraphBreak(t *testing.T) {
	c := newDefault(t)
	text := strings.Repeat("a", 700) + "\n\n" + strings.Repeat("b", 800)

	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 702)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"))
	assert.True(t, strings.HasSuffix(chunks[1], "b"))
}

func TestTextChunker_ShortText(t *testing.T) {
	c := newDefault(t)

	chunks := c.Split("A short note.")

	assert.Equal(t, []string{"A short note."}, chunks)
}

func TestTextChunker_EmptyInput(t *testing.T) {
	c := newDefault(t)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split(" \n\t "))
}

func TestTextChunker_MultibyteText(t *testing.T) {
	c, err := NewTextChunker(10, 3)
	require.NoError(t, err)

	chunks := c.Split(strings.Repeat("é", 25))

	assert.Equal(t, []int{10, 10, 10, 4}, lengths(chunks))
}

func TestNewTextChunker_Invalid(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"zero overlap", 100, 0},
		{"overlap equals size", 100, 100},
		{"overlap larger", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTextChunker(tc.size, tc.overlap)
			assert.Error(t, err)
		})
	}
}

func TestTextChunker_ChunkDocument(t *testing.T) {
	c, err := NewTextChunker(50, 10)
	require.NoError(t, err)

	doc := domain.Document{
		ID:     "doc1",
		Source: domain.FileSource("/data/report.pdf"),
		Pages: []domain.Page{
			{Number: 1, Text: strings.Repeat("first page ", 8)},
			{Number: 2, Text: ""},
			{Number: 3, Text: "third page"},
		},
	}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	ids := map[string]bool{}
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, "doc1", chunk.DocID)
		assert.Equal(t, "report.pdf", chunk.Source)
		assert.NotEmpty(t, chunk.ID)
		assert.False(t, ids[chunk.ID], "duplicate chunk id")
		ids[chunk.ID] = true
	}

	last := chunks[len(chunks)-1]
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, 0, last.Offset)
	assert.Equal(t, "third page", last.Text)
	for _, chunk := range chunks[:len(chunks)-1] {
		assert.Equal(t, 1, chunk.Page)
	}
}

func BenchmarkTextChunker_Split(b *testing.B) {
	c, _ := NewTextChunker(DefaultChunkSize, DefaultChunkOverlap)
	text := strings.Repeat(sampleText(), 200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Split(text)
	}
}

func sampleText() string {
	return "Retrieval systems split long documents into passages. Each passage is embedded separately.\n\n" +
		"Overlap keeps sentences that straddle a boundary visible to both neighbours! Does it help recall? " +
		"Usually it does; the cost is a modest increase in index size, which is acceptable for most corpora.\n" +
		"Short line.\n\nA final paragraph closes the sample with a few more words to split."
}

func lengths(chunks []string) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = len([]rune(c))
	}
	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
