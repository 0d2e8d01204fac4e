package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

var _ port.LLM = (*Anthropic)(nil)

type Anthropic struct {
	client anthropic.Client
	cfg    Config
}

func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic llm: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

func (l *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(l.cfg.Model),
		MaxTokens:   int64(l.cfg.maxTokens()),
		Temperature: anthropic.Float(l.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", domain.Transient("anthropic completion", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (l *Anthropic) ModelName() string {
	return l.cfg.Model
}
