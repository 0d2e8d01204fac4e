package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
)

var _ port.Retriever = (*RetrieveUseCase)(nil)

// RetrieveUseCase embeds a query and searches the collection.
type RetrieveUseCase struct {
	embedder   port.Embedder
	index      port.VectorIndex
	collection string
	retry      RetryPolicy
	log        log.FieldLogger
}

func NewRetrieveUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	collection string,
	retry RetryPolicy,
	logger log.FieldLogger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:   embedder,
		index:      index,
		collection: collection,
		retry:      retry,
		log:        logging.OrDiscard(logger),
	}
}

// Retrieve returns at most k chunks, highest score first. Equal scores keep
// the order the index returned them in.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	var vector []float32
	err := u.retry.Do(ctx, u.log, "embed", func() error {
		var err error
		vector, err = u.embedder.Embed(ctx, query)
		return err
	})
	if err != nil {
		return nil, domain.NewStageError("embed", err)
	}

	var hits []port.SearchHit
	err = u.retry.Do(ctx, u.log, "search", func() error {
		var err error
		hits, err = u.index.Search(ctx, u.collection, vector, k)
		return err
	})
	if err != nil {
		return nil, domain.NewStageError("search", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = domain.ScoredChunk{Chunk: chunkFromHit(h), Score: h.Score}
	}
	return results, nil
}

func chunkFromHit(h port.SearchHit) domain.Chunk {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(h.Payload[key])
		return n
	}
	return domain.Chunk{
		ID:     h.ID,
		DocID:  h.Payload[port.PayloadDocID],
		Index:  atoi(port.PayloadChunkIndex),
		Page:   atoi(port.PayloadPage),
		Offset: atoi(port.PayloadOffset),
		Source: h.Payload[port.PayloadSource],
		Text:   h.Payload[port.PayloadText],
	}
}

// FormatContext renders chunks as attributed blocks separated by blank
// lines, numbered from 1 in retrieval order.
func FormatContext(chunks []domain.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		source := c.Chunk.Source
		if source == "" {
			source = domain.UnknownSource
		}
		page := "N/A"
		if c.Chunk.Page > 0 {
			page = strconv.Itoa(c.Chunk.Page)
		}
		parts[i] = fmt.Sprintf("[Source: %s, Page %s, Chunk %d]: %s", source, page, i+1, c.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
