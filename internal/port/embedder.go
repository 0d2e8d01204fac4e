package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, one vector per input in
	// input order. The batch succeeds or fails as a whole.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores and searches embedding vectors grouped in collections.
type VectorIndex interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)

	CreateCollection(ctx context.Context, collection string, dimension int) error

	DeleteCollection(ctx context.Context, collection string) error

	// Upsert adds or replaces entries by ID. Searching or writing a missing
	// collection returns domain.ErrCollectionNotFound.
	Upsert(ctx context.Context, collection string, entries []IndexEntry) error

	// Search returns at most k hits ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchHit, error)
}

// IndexEntry represents a vector to be stored.
type IndexEntry struct {
	ID      string            // Unique identifier (chunk ID)
	Vector  []float32         // Embedding vector
	Payload map[string]string // Chunk text and attribution fields
}

// SearchHit represents a search result.
type SearchHit struct {
	ID      string
	Score   float64 // Similarity score (higher is better)
	Payload map[string]string
}

// Payload keys shared by every index backend.
const (
	PayloadText       = "text"
	PayloadSource     = "source_file"
	PayloadDocID      = "doc_id"
	PayloadPage       = "page"
	PayloadChunkIndex = "chunk_index"
	PayloadOffset     = "offset"
)
