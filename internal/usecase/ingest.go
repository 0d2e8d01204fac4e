package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
)

// IngestConfig configures an IngestUseCase.
type IngestConfig struct {
	Collection  string
	Concurrency int
	Retry       RetryPolicy
}

// IngestUseCase loads, chunks, embeds and indexes documents.
type IngestUseCase struct {
	loader   port.Loader
	chunker  port.Chunker
	embedder port.Embedder
	index    port.VectorIndex
	cfg      IngestConfig
	log      log.FieldLogger
	progress func(domain.Source, error)
}

func NewIngestUseCase(
	loader port.Loader,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	cfg IngestConfig,
	logger log.FieldLogger,
) *IngestUseCase {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &IngestUseCase{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		log:      logging.OrDiscard(logger),
	}
}

// OnLoaded registers a callback invoked once per source after loading. It may
// be called from several goroutines.
func (u *IngestUseCase) OnLoaded(fn func(src domain.Source, err error)) {
	u.progress = fn
}

// IngestDocument ingests one source. A load failure fails the call.
func (u *IngestUseCase) IngestDocument(ctx context.Context, src domain.Source) (*domain.IngestResult, error) {
	return u.Ingest(ctx, []domain.Source{src})
}

// Ingest loads sources concurrently and writes all of their chunks with one
// embedding batch and one upsert. Sources that fail to load are skipped and
// reported through the returned result and an ErrPartialIngestion error;
// every other failure aborts the call before anything is written.
func (u *IngestUseCase) Ingest(ctx context.Context, sources []domain.Source) (*domain.IngestResult, error) {
	if len(sources) == 0 {
		return nil, domain.NewStageError("load", domain.ErrNothingToIngest)
	}

	docs, failures := u.loadAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStageError("load", err)
	}

	result := &domain.IngestResult{Failures: failures}
	if len(failures) == len(sources) {
		inputs := make([]string, len(failures))
		causes := make([]error, len(failures))
		for i, f := range failures {
			inputs[i] = f.Source.Location
			causes[i] = f.Err
		}
		return result, domain.NewStageError("load",
			fmt.Errorf("%w: %w", domain.ErrNothingToIngest, errors.Join(causes...)), inputs...)
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		docChunks, err := u.chunker.Chunk(*doc)
		if err != nil {
			return result, domain.NewStageError("chunk", err, doc.Source.Location)
		}
		if len(docChunks) == 0 {
			u.log.WithField("source", doc.Source.Location).Warn("document has no text")
		}

		result.Documents++
		result.Pages += len(doc.Pages)
		result.Files = append(result.Files, doc.Source.Name())
		chunks = append(chunks, docChunks...)
	}
	result.Chunks = len(chunks)

	if len(chunks) > 0 {
		if err := u.write(ctx, chunks); err != nil {
			return result, err
		}
	}

	u.log.WithFields(log.Fields{
		"documents": result.Documents,
		"chunks":    result.Chunks,
		"failed":    len(result.Failures),
	}).Info("ingestion complete")

	return result, result.PartialErr()
}

// loadAll returns one slot per source: a document, or nil with the failure
// recorded.
func (u *IngestUseCase) loadAll(ctx context.Context, sources []domain.Source) ([]*domain.Document, []domain.LoadFailure) {
	docs := make([]*domain.Document, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(u.cfg.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			pages, err := u.loader.Load(ctx, src)
			if err != nil {
				errs[i] = err
			} else {
				docs[i] = &domain.Document{ID: DocumentID(src), Source: src, Pages: pages}
			}
			if u.progress != nil {
				u.progress(src, err)
			}
			return nil
		})
	}
	g.Wait()

	var failures []domain.LoadFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		u.log.WithError(err).WithField("source", sources[i].Location).Warn("skipping document")
		failures = append(failures, domain.LoadFailure{Source: sources[i], Err: err})
	}
	return docs, failures
}

func (u *IngestUseCase) write(ctx context.Context, chunks []domain.Chunk) error {
	if err := u.ensureCollection(ctx); err != nil {
		return domain.NewStageError("index", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := u.cfg.Retry.Do(ctx, u.log, "embed", func() error {
		var err error
		vectors, err = u.embedder.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return domain.NewStageError("embed", err)
	}
	if len(vectors) != len(chunks) {
		return domain.NewStageError("embed", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	entries := make([]port.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = port.IndexEntry{ID: c.ID, Vector: vectors[i], Payload: chunkPayload(c)}
	}

	err = u.cfg.Retry.Do(ctx, u.log, "index", func() error {
		return u.index.Upsert(ctx, u.cfg.Collection, entries)
	})
	if err != nil {
		return domain.NewStageError("index", err)
	}
	return nil
}

// ensureCollection creates the collection with the embedder's dimension when
// it does not exist yet.
func (u *IngestUseCase) ensureCollection(ctx context.Context) error {
	return u.cfg.Retry.Do(ctx, u.log, "index", func() error {
		exists, err := u.index.CollectionExists(ctx, u.cfg.Collection)
		if err != nil || exists {
			return err
		}
		u.log.WithField("collection", u.cfg.Collection).Info("creating collection")
		return u.index.CreateCollection(ctx, u.cfg.Collection, u.embedder.Dimension())
	})
}

// DocumentID derives a stable document ID from the source location.
func DocumentID(src domain.Source) string {
	hash := sha256.Sum256([]byte(src.Location))
	return hex.EncodeToString(hash[:8])
}

func chunkPayload(c domain.Chunk) map[string]string {
	p := map[string]string{
		port.PayloadText:       c.Text,
		port.PayloadSource:     c.Source,
		port.PayloadDocID:      c.DocID,
		port.PayloadChunkIndex: strconv.Itoa(c.Index),
		port.PayloadOffset:     strconv.Itoa(c.Offset),
	}
	if c.Page > 0 {
		p[port.PayloadPage] = strconv.Itoa(c.Page)
	}
	return p
}
