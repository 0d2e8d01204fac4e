package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const (
	DefaultGeminiModel     = "embedding-001"
	defaultGeminiDimension = 768
	geminiMaxBatch         = 100
)

var _ port.Embedder = (*GeminiEmbedder)(nil)

// GeminiEmbedder embeds text with a Google Generative AI embedding model.
type GeminiEmbedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	name      string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if dimension <= 0 {
		dimension = defaultGeminiDimension
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     client.EmbeddingModel(model),
		name:      model,
		dimension: dimension,
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, domain.Transient("gemini embed", err)
	}
	if res.Embedding == nil {
		return nil, domain.Transient("gemini embed", fmt.Errorf("empty embedding"))
	}
	return res.Embedding.Values, nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for _, batch := range splitBatches(texts, geminiMaxBatch) {
		b := e.model.NewBatch()
		for _, t := range batch {
			b.AddContent(genai.Text(t))
		}
		res, err := e.model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, domain.Transient("gemini batch embed", err)
		}
		if len(res.Embeddings) != len(batch) {
			return nil, domain.Transient("gemini batch embed",
				fmt.Errorf("expected %d embeddings, got %d", len(batch), len(res.Embeddings)))
		}
		for _, emb := range res.Embeddings {
			all = append(all, emb.Values)
		}
	}
	return all, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) ModelName() string {
	return e.name
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
