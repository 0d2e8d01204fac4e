package usecase

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"ragqa/internal/logging"
	"ragqa/internal/port"
)

// AnswerGenerator grounds a language model in retrieved context.
type AnswerGenerator struct {
	llm       port.LLM
	tokenizer port.Tokenizer
	log       log.FieldLogger
}

// NewAnswerGenerator returns a generator. The tokenizer is optional and only
// used to log prompt sizes.
func NewAnswerGenerator(llm port.LLM, tokenizer port.Tokenizer, logger log.FieldLogger) *AnswerGenerator {
	return &AnswerGenerator{llm: llm, tokenizer: tokenizer, log: logging.OrDiscard(logger)}
}

// Prompt builds the single prompt sent to the model.
func (g *AnswerGenerator) Prompt(question, contextText string) (string, error) {
	preamble, err := renderPrompt("answer", struct{ Context string }{strings.TrimSpace(contextText)})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nUser: %s\nAssistant:", strings.TrimRight(preamble, "\n"), question), nil
}

// Generate makes exactly one model call. Errors are returned as is.
func (g *AnswerGenerator) Generate(ctx context.Context, question, contextText string) (string, error) {
	prompt, err := g.Prompt(question, contextText)
	if err != nil {
		return "", err
	}
	if g.tokenizer != nil {
		g.log.WithFields(log.Fields{
			"model":         g.llm.ModelName(),
			"prompt_tokens": g.tokenizer.CountTokens(prompt),
		}).Debug("generating answer")
	}

	answer, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
