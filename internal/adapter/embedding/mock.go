package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"ragqa/internal/adapter/analyzer"
	"ragqa/internal/port"
)

var _ port.Embedder = (*MockEmbedder)(nil)

// MockEmbedder hashes stemmed terms into a fixed number of buckets and
// L2-normalises the counts. Texts sharing vocabulary get high cosine
// similarity, which is enough to run the pipeline offline and in tests.
type MockEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &MockEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	for term, n := range e.tokenizer.Bag(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		v[h.Sum32()%uint32(e.dimension)] += float32(n)
	}

	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
