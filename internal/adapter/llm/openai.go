package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const DefaultOpenAIModel = "gpt-4o-mini"

var _ port.LLM = (*OpenAI)(nil)

type OpenAI struct {
	client openai.Client
	cfg    Config
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai llm: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (l *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(l.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(l.cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(l.cfg.maxTokens())),
	})
	if err != nil {
		return "", domain.Transient("openai completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Transient("openai completion", fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (l *OpenAI) ModelName() string {
	return l.cfg.Model
}
