package port

import "ragqa/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
