package port

// Tokenizer splits prose into comparable terms.
type Tokenizer interface {
	Tokenize(text string) []string

	// CountTokens estimates how many model tokens text costs.
	CountTokens(text string) int
}
