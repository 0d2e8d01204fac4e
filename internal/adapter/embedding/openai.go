package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaURL   = "http://localhost:11434/v1/"
	defaultBatchSize   = 100
)

var _ port.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	BatchSize int
}

// OpenAIEmbedder calls the OpenAI embeddings API, or any server that speaks
// it (Ollama, vLLM, LM Studio).
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = knownDimension(cfg.Model)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
	}, nil
}

// NewOllamaEmbedder targets a local Ollama server through its OpenAI
// compatible endpoint.
func NewOllamaEmbedder(model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return NewOpenAIEmbedder(OpenAIConfig{
		APIKey:    "ollama",
		Model:     model,
		BaseURL:   baseURL,
		Dimension: dimension,
	})
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends texts in provider-sized requests. Any failed request
// fails the whole batch.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for _, batch := range splitBatches(texts, e.batchSize) {
		vectors, err := e.request(ctx, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, domain.Transient("openai embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.Transient("openai embeddings",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, domain.Transient("openai embeddings", fmt.Errorf("embedding index %d out of range", idx))
		}
		vectors[idx] = toFloat32(d.Embedding)
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func splitBatches(texts []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
