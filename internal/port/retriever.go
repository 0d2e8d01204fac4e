package port

import (
	"context"

	"ragqa/internal/domain"
)

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	// Retrieve returns at most k chunks, most similar first.
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// Loader reads a document source into ordered pages.
type Loader interface {
	Load(ctx context.Context, src domain.Source) ([]domain.Page, error)
}
