package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Complete sends a single prompt and returns the model's text.
	Complete(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
