package usecase

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
)

// QueryUseCase answers questions: retrieve, format, generate.
type QueryUseCase struct {
	retriever   port.Retriever
	generator   *AnswerGenerator
	history     port.HistoryStore
	concurrency int
	log         log.FieldLogger
	now         func() time.Time
}

// NewQueryUseCase returns a query use case. history may be nil.
func NewQueryUseCase(
	retriever port.Retriever,
	generator *AnswerGenerator,
	history port.HistoryStore,
	concurrency int,
	logger log.FieldLogger,
) *QueryUseCase {
	if concurrency < 1 {
		concurrency = 4
	}
	return &QueryUseCase{
		retriever:   retriever,
		generator:   generator,
		history:     history,
		concurrency: concurrency,
		log:         logging.OrDiscard(logger),
		now:         time.Now,
	}
}

func (u *QueryUseCase) Query(ctx context.Context, question string, k int) (*domain.AnswerRecord, error) {
	chunks, err := u.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		u.log.WithError(domain.ErrNoContext).WithField("question", question).Warn("answering without context")
	}

	contextText := FormatContext(chunks)
	answer, err := u.generator.Generate(ctx, question, contextText)
	if err != nil {
		return nil, domain.NewStageError("generate", err)
	}

	contexts := make([]string, len(chunks))
	for i, c := range chunks {
		contexts[i] = c.Chunk.Text
	}
	record := &domain.AnswerRecord{
		Question:    question,
		Answer:      answer,
		Context:     contextText,
		Sources:     domain.UniqueSources(chunks),
		ChunksFound: len(chunks),
		Contexts:    contexts,
		AnsweredAt:  u.now(),
	}

	if u.history != nil {
		if err := u.history.Append(record); err != nil {
			u.log.WithError(err).Warn("failed to save answer to history")
		}
	}
	return record, nil
}

// QueryMany answers questions concurrently. Outcome i belongs to question i
// and holds either a record or that question's error; failures never cancel
// other questions. After cancellation, finished outcomes are kept and the
// rest carry the context error.
func (u *QueryUseCase) QueryMany(ctx context.Context, questions []string, k int) []domain.QueryOutcome {
	outcomes := make([]domain.QueryOutcome, len(questions))

	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for i, q := range questions {
		outcomes[i].Question = q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			record, err := u.Query(ctx, q, k)
			outcomes[i].Record = record
			outcomes[i].Err = err
			if err != nil {
				u.log.WithError(err).WithField("question", q).Warn("query failed")
			}
			return nil
		})
	}
	g.Wait()

	return outcomes
}
