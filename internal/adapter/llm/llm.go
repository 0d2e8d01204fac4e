// Package llm adapts hosted language models to port.LLM.
package llm

// Config is shared by every provider adapter.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

const defaultMaxTokens = 1024

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return c.MaxTokens
}
