package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/adapter/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

func newIngest(t *testing.T, loader port.Loader, emb port.Embedder, idx port.VectorIndex) *IngestUseCase {
	t.Helper()
	ch, err := chunker.NewTextChunker(100, 20)
	require.NoError(t, err)
	return NewIngestUseCase(loader, ch, emb, idx, IngestConfig{Collection: "docs", Concurrency: 4, Retry: fastRetry}, nil)
}

func TestIngest_PartialFailureStillWrites(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]domain.Page{
		"/docs/a.txt": {{Number: 0, Text: strings.Repeat("alpha beta gamma. ", 20)}},
	}}
	emb := newCountingEmbedder()
	idx := newRecordingIndex()

	result, err := newIngest(t, loader, emb, idx).Ingest(context.Background(), []domain.Source{
		domain.FileSource("/docs/a.txt"),
		domain.FileSource("/docs/missing.pdf"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialIngestion)
	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, []string{"/docs/missing.pdf"}, stageErr.Inputs)

	require.NotNil(t, result)
	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, []string{"a.txt"}, result.Files)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "/docs/missing.pdf", result.Failures[0].Source.Location)

	assert.Greater(t, result.Chunks, 1)
	assert.Equal(t, result.Chunks, idx.Len("docs"))
	assert.Equal(t, 1, emb.batchCalls)
	assert.Equal(t, 1, idx.upserts)
	assert.Equal(t, []int{64}, idx.created)
}

func TestIngest_OneBatchAcrossDocumentsInInputOrder(t *testing.T) {
	loader := &fakeLoader{
		pages: map[string][]domain.Page{
			"a.txt": {{Number: 1, Text: "first document about insulin"}},
			"b.txt": {{Number: 1, Text: "second document about statins"}, {Number: 2, Text: "page two"}},
		},
		// a finishes last; order must still follow the input.
		delay: map[string]time.Duration{"a.txt": 20 * time.Millisecond},
	}
	emb := newCountingEmbedder()
	idx := newRecordingIndex()

	result, err := newIngest(t, loader, emb, idx).Ingest(context.Background(), []domain.Source{
		domain.FileSource("a.txt"), domain.FileSource("b.txt"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, []string{"a.txt", "b.txt"}, result.Files)
	assert.Equal(t, 1, emb.batchCalls)
	assert.Equal(t, 1, idx.upserts)

	hits, err := idx.Search(context.Background(), "docs", make([]float32, 64), 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// Zero vectors tie, so insertion order shows. Chunk indices restart per
	// document.
	type placement struct{ source, page, index string }
	var got []placement
	for _, h := range hits {
		got = append(got, placement{h.Payload[port.PayloadSource], h.Payload[port.PayloadPage], h.Payload[port.PayloadChunkIndex]})
	}
	assert.Equal(t, []placement{{"a.txt", "1", "0"}, {"b.txt", "1", "0"}, {"b.txt", "2", "1"}}, got)
	assert.Equal(t, "a.txt", hits[0].Payload[port.PayloadSource])
	assert.Equal(t, "2", hits[2].Payload[port.PayloadPage])
}

func TestIngest_AllFailIsNothingToIngest(t *testing.T) {
	emb := newCountingEmbedder()
	idx := newRecordingIndex()

	result, err := newIngest(t, &fakeLoader{}, emb, idx).Ingest(context.Background(), []domain.Source{
		domain.FileSource("x.pdf"), domain.FileSource("y.pdf"),
	})
	assert.ErrorIs(t, err, domain.ErrNothingToIngest)
	assert.NotErrorIs(t, err, domain.ErrPartialIngestion)
	require.NotNil(t, result)
	assert.Len(t, result.Failures, 2)
	assert.Zero(t, emb.batchCalls)
	assert.Zero(t, idx.upserts)
}

func TestIngest_NoSources(t *testing.T) {
	_, err := newIngest(t, &fakeLoader{}, newCountingEmbedder(), newRecordingIndex()).Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNothingToIngest)
}

func TestIngest_TransientEmbedFailureIsRetried(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]domain.Page{"a.txt": {{Text: "some text"}}}}
	emb := newCountingEmbedder()
	emb.err = domain.Transient("embed", errors.New("503"))
	emb.failFirst = 2
	idx := newRecordingIndex()

	_, err := newIngest(t, loader, emb, idx).IngestDocument(context.Background(), domain.FileSource("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, 3, emb.batchCalls)
	assert.Equal(t, 1, idx.Len("docs"))
}

func TestIngest_EmbedFailureAbortsAtomically(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]domain.Page{"a.txt": {{Text: "some text"}}}}
	emb := newCountingEmbedder()
	emb.err = domain.Transient("embed", errors.New("503"))
	emb.failFirst = 100
	idx := newRecordingIndex()

	_, err := newIngest(t, loader, emb, idx).IngestDocument(context.Background(), domain.FileSource("a.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "embed", stageErr.Stage)
	assert.Equal(t, 3, emb.batchCalls, "bounded by the retry policy")
	assert.Zero(t, idx.upserts)
	assert.Zero(t, idx.Len("docs"))
}

func TestIngest_CollectionNotFoundIsNotRetried(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]domain.Page{"a.txt": {{Text: "some text"}}}}
	idx := newRecordingIndex()
	idx.upsertErr = domain.ErrCollectionNotFound

	_, err := newIngest(t, loader, newCountingEmbedder(), idx).IngestDocument(context.Background(), domain.FileSource("a.txt"))
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
	assert.Equal(t, 1, idx.upserts)
}

func TestIngestDocument_LoadFailureFails(t *testing.T) {
	_, err := newIngest(t, &fakeLoader{}, newCountingEmbedder(), newRecordingIndex()).
		IngestDocument(context.Background(), domain.FileSource("gone.txt"))
	assert.ErrorIs(t, err, domain.ErrNothingToIngest)
	assert.Contains(t, err.Error(), "gone.txt")
}

func TestIngest_WhitespaceDocumentWritesNothing(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]domain.Page{"blank.txt": {{Text: "  \n\t "}}}}
	emb := newCountingEmbedder()
	idx := newRecordingIndex()

	result, err := newIngest(t, loader, emb, idx).IngestDocument(context.Background(), domain.FileSource("blank.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
	assert.Zero(t, result.Chunks)
	assert.Zero(t, emb.batchCalls)
}

func TestIngest_ReportsProgress(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]domain.Page{"a.txt": {{Text: "text"}}}}
	uc := newIngest(t, loader, newCountingEmbedder(), newRecordingIndex())

	var mu sync.Mutex
	seen := map[string]bool{}
	uc.OnLoaded(func(src domain.Source, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen[src.Location] = err == nil
	})

	uc.Ingest(context.Background(), []domain.Source{domain.FileSource("a.txt"), domain.FileSource("b.txt")})
	assert.Equal(t, map[string]bool{"a.txt": true, "b.txt": false}, seen)
}

func TestDocumentID_Stable(t *testing.T) {
	assert.Equal(t, DocumentID(domain.FileSource("a")), DocumentID(domain.FileSource("a")))
	assert.NotEqual(t, DocumentID(domain.FileSource("a")), DocumentID(domain.FileSource("b")))
}
