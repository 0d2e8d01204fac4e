package port

import (
	"context"

	"ragqa/internal/domain"
)

// TestCaseStore persists evaluation datasets.
type TestCaseStore interface {
	Exists() bool
	Load() ([]domain.TestCase, error)
	Save(cases []domain.TestCase) error
}

// ResultStore appends evaluation results. Stored results are never rewritten.
type ResultStore interface {
	Append(ctx context.Context, result *domain.EvaluationResult) error
	List(ctx context.Context, limit int) ([]domain.EvaluationResult, error)
}

// HistoryStore keeps answered queries.
type HistoryStore interface {
	Append(record *domain.AnswerRecord) error
	Recent(limit int) ([]domain.AnswerRecord, error)
}

// Metric scores one evaluation test case in [0,1].
type Metric interface {
	Name() string
	Score(ctx context.Context, tc domain.TestCase) (float64, error)
}
