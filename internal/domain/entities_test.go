package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniqueSources(t *testing.T) {
	chunks := []ScoredChunk{
		{Chunk: Chunk{Source: "b.pdf"}},
		{Chunk: Chunk{Source: ""}},
		{Chunk: Chunk{Source: "a.txt"}},
		{Chunk: Chunk{Source: "b.pdf"}},
	}
	assert.Equal(t, []string{"a.txt", "b.pdf"}, UniqueSources(chunks))
}

func TestUniqueSources_NoneKnown(t *testing.T) {
	sources := UniqueSources([]ScoredChunk{{Chunk: Chunk{Text: "orphan"}}})
	assert.Empty(t, sources)
	assert.NotNil(t, sources)
}

func TestPartialErr(t *testing.T) {
	r := &IngestResult{}
	assert.NoError(t, r.PartialErr())

	r.Failures = []LoadFailure{{Source: FileSource("missing.pdf")}}
	err := r.PartialErr()
	assert.ErrorIs(t, err, ErrPartialIngestion)
	assert.Contains(t, err.Error(), "missing.pdf")
}
