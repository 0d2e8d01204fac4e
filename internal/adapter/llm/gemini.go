package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const DefaultGeminiModel = "gemini-2.0-flash-exp"

var _ port.LLM = (*Gemini)(nil)

type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini llm: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(float32(cfg.Temperature))
	model.SetMaxOutputTokens(int32(cfg.maxTokens()))

	return &Gemini{client: client, model: model, name: cfg.Model}, nil
}

func (l *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := l.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", domain.Transient("gemini completion", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", domain.Transient("gemini completion", fmt.Errorf("no candidates returned"))
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func (l *Gemini) ModelName() string {
	return l.name
}

func (l *Gemini) Close() error {
	return l.client.Close()
}
