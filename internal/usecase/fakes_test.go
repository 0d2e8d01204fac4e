package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/memstore"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// fakeLoader serves page text by location; missing locations fail.
type fakeLoader struct {
	pages map[string][]domain.Page
	delay map[string]time.Duration
}

func (l *fakeLoader) Load(ctx context.Context, src domain.Source) ([]domain.Page, error) {
	if d := l.delay[src.Location]; d > 0 {
		time.Sleep(d)
	}
	pages, ok := l.pages[src.Location]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", src.Location)
	}
	return pages, nil
}

// countingEmbedder wraps the mock embedder and can fail a number of batch
// calls with a transient error.
type countingEmbedder struct {
	*embedding.MockEmbedder
	mu         sync.Mutex
	batchCalls int
	failFirst  int
	err        error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{MockEmbedder: embedding.NewMockEmbedder(64)}
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batchCalls++
	n := e.batchCalls
	e.mu.Unlock()
	if e.err != nil && n <= e.failFirst {
		return nil, e.err
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

// recordingIndex wraps the memory index and counts upserts.
type recordingIndex struct {
	*memstore.MemoryIndex
	mu        sync.Mutex
	upserts   int
	upsertErr error
	created   []int
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{MemoryIndex: memstore.NewMemoryIndex()}
}

func (r *recordingIndex) CreateCollection(ctx context.Context, name string, dim int) error {
	r.mu.Lock()
	r.created = append(r.created, dim)
	r.mu.Unlock()
	return r.MemoryIndex.CreateCollection(ctx, name, dim)
}

func (r *recordingIndex) Upsert(ctx context.Context, name string, entries []port.IndexEntry) error {
	r.mu.Lock()
	r.upserts++
	r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	return r.MemoryIndex.Upsert(ctx, name, entries)
}

// scriptedLLM answers by the first marker the prompt contains and fails for
// prompts containing any failOn marker.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []reply
	failOn  []string
	calls   int
	prompts []string
}

type reply struct {
	marker string
	text   string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	for _, m := range s.failOn {
		if strings.Contains(prompt, m) {
			return "", domain.Transient("complete", errors.New("model overloaded"))
		}
	}
	for _, r := range s.replies {
		if strings.Contains(prompt, r.marker) {
			return r.text, nil
		}
	}
	return "I could not find that in the documents.", nil
}

func (s *scriptedLLM) ModelName() string { return "scripted" }

// staticRetriever returns fixed chunks.
type staticRetriever struct {
	chunks []domain.ScoredChunk
	err    error
}

func (r *staticRetriever) Retrieve(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.chunks) > k {
		return r.chunks[:k], nil
	}
	return r.chunks, nil
}

// fixedMetric returns scores by question.
type fixedMetric struct {
	name   string
	scores map[string]float64
	fail   map[string]bool
}

func (m *fixedMetric) Name() string { return m.name }

func (m *fixedMetric) Score(_ context.Context, tc domain.TestCase) (float64, error) {
	if m.fail[tc.Question] {
		return 0, domain.ErrMalformedGeneration
	}
	return m.scores[tc.Question], nil
}

type memoryResults struct {
	mu      sync.Mutex
	results []domain.EvaluationResult
}

func (m *memoryResults) Append(_ context.Context, r *domain.EvaluationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *r)
	return nil
}

func (m *memoryResults) List(_ context.Context, limit int) ([]domain.EvaluationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.EvaluationResult(nil), m.results...), nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []domain.AnswerRecord
}

func (h *memoryHistory) Append(r *domain.AnswerRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *r)
	return nil
}

func (h *memoryHistory) Recent(limit int) ([]domain.AnswerRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.AnswerRecord(nil), h.records...), nil
}

func chunk(source string, page int, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{Chunk: domain.Chunk{Source: source, Page: page, Text: text}, Score: score}
}

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
