package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
)

const (
	ModeFull  = "full"
	ModeQuick = "quick"
)

// DefaultQuickQuestions are used by Quick when no questions are configured.
var DefaultQuickQuestions = []string{
	"What are the main side effects of ACE inhibitors?",
	"What treatment protocols showed best outcomes?",
	"What were the key limitations in the studies?",
}

// EvaluationInput selects where test cases come from. Exactly one of Cases,
// Dataset or Generate is used, in that order of preference. With a Dataset
// and Generate set, a missing dataset is generated and saved.
type EvaluationInput struct {
	Cases    []domain.TestCase
	Dataset  port.TestCaseStore
	Generate *GenerationParams
}

// EvaluateUseCase scores the pipeline with a fixed set of metrics.
type EvaluateUseCase struct {
	metrics      []port.Metric
	quickMetrics []port.Metric
	generator    *TestSetGenerator
	query        *QueryUseCase
	results      port.ResultStore
	concurrency  int
	log          log.FieldLogger
	now          func() time.Time
}

// NewEvaluateUseCase returns an evaluation use case. results may be nil, in
// which case nothing is persisted.
func NewEvaluateUseCase(
	metrics []port.Metric,
	quickMetrics []port.Metric,
	generator *TestSetGenerator,
	query *QueryUseCase,
	results port.ResultStore,
	concurrency int,
	logger log.FieldLogger,
) *EvaluateUseCase {
	if concurrency < 1 {
		concurrency = 4
	}
	return &EvaluateUseCase{
		metrics:      metrics,
		quickMetrics: quickMetrics,
		generator:    generator,
		query:        query,
		results:      results,
		concurrency:  concurrency,
		log:          logging.OrDiscard(logger),
		now:          time.Now,
	}
}

// Run resolves the test cases, scores them with every configured metric and
// appends the result to the result store.
func (u *EvaluateUseCase) Run(ctx context.Context, in EvaluationInput) (*domain.EvaluationResult, error) {
	cases, err := u.resolveCases(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, domain.NewStageError("evaluate", errors.New("no test cases to evaluate"))
	}

	result, err := u.Score(ctx, cases, u.metrics, ModeFull)
	if err != nil {
		return nil, err
	}
	return result, u.persist(ctx, result)
}

func (u *EvaluateUseCase) resolveCases(ctx context.Context, in EvaluationInput) ([]domain.TestCase, error) {
	switch {
	case len(in.Cases) > 0:
		return in.Cases, nil

	case in.Dataset != nil && in.Dataset.Exists():
		cases, err := in.Dataset.Load()
		if err != nil {
			return nil, domain.NewStageError("dataset", err)
		}
		u.log.WithField("cases", len(cases)).Info("loaded test cases")
		return cases, nil

	case in.Generate != nil || in.Dataset != nil:
		params := GenerationParams{}
		if in.Generate != nil {
			params = *in.Generate
		}
		cases, err := u.generator.GenerateTestCases(ctx, params)
		if err != nil {
			return nil, err
		}
		if in.Dataset != nil {
			if err := in.Dataset.Save(cases); err != nil {
				return nil, domain.NewStageError("dataset", err)
			}
		}
		return cases, nil

	default:
		return nil, domain.NewStageError("evaluate", errors.New("no test cases, dataset or generation parameters given"))
	}
}

// Quick answers a fixed list of questions and scores the answers without
// reference data. Questions that fail to answer are kept in the details.
func (u *EvaluateUseCase) Quick(ctx context.Context, questions []string, k int) (*domain.EvaluationResult, error) {
	if len(questions) == 0 {
		questions = DefaultQuickQuestions
	}

	outcomes := u.query.QueryMany(ctx, questions, k)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cases []domain.TestCase
	var failed []domain.QuestionDetail
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, domain.QuestionDetail{
				Question: o.Question,
				Scores:   map[string]float64{},
				Errors:   map[string]string{"query": o.Err.Error()},
			})
			continue
		}
		cases = append(cases, domain.TestCase{
			Question: o.Question,
			Answer:   o.Record.Answer,
			Contexts: o.Record.Contexts,
		})
	}
	if len(cases) == 0 {
		return nil, domain.NewStageError("query", errors.New("every quick evaluation question failed"), questions...)
	}

	result, err := u.Score(ctx, cases, u.quickMetrics, ModeQuick)
	if err != nil {
		return nil, err
	}
	result.Details = append(result.Details, failed...)
	return result, u.persist(ctx, result)
}

// Score runs every metric on every case. A metric that fails on a case is
// recorded in that case's details and left out of the metric's mean.
func (u *EvaluateUseCase) Score(ctx context.Context, cases []domain.TestCase, metrics []port.Metric, mode string) (*domain.EvaluationResult, error) {
	type cell struct {
		score float64
		err   error
	}
	cells := make([][]cell, len(cases))
	for i := range cells {
		cells[i] = make([]cell, len(metrics))
	}

	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for i, tc := range cases {
		for j, m := range metrics {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					cells[i][j].err = err
					return nil
				}
				score, err := m.Score(ctx, tc)
				cells[i][j] = cell{score: score, err: err}
				if err != nil {
					u.log.WithError(err).WithFields(log.Fields{
						"metric":   m.Name(),
						"question": tc.Question,
					}).Warn("metric failed")
				}
				return nil
			})
		}
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.EvaluationResult{
		ID:           uuid.NewString(),
		Timestamp:    u.now(),
		Mode:         mode,
		NumQuestions: len(cases),
		Metrics:      make(map[string]float64),
		Details:      make([]domain.QuestionDetail, len(cases)),
	}

	sums := make([]float64, len(metrics))
	counts := make([]int, len(metrics))
	for i, tc := range cases {
		detail := domain.QuestionDetail{
			Question:      tc.Question,
			Answer:        tc.Answer,
			ContextsCount: len(tc.Contexts),
			Scores:        make(map[string]float64),
		}
		for j, m := range metrics {
			c := cells[i][j]
			if c.err != nil {
				if detail.Errors == nil {
					detail.Errors = make(map[string]string)
				}
				detail.Errors[m.Name()] = c.err.Error()
				continue
			}
			detail.Scores[m.Name()] = c.score
			sums[j] += c.score
			counts[j]++
		}
		result.Details[i] = detail
	}

	for j, m := range metrics {
		if counts[j] == 0 {
			u.log.WithField("metric", m.Name()).Warn("metric failed on every test case")
			continue
		}
		result.Metrics[m.Name()] = sums[j] / float64(counts[j])
	}
	result.Overall = Overall(result.Metrics)
	return result, nil
}

func (u *EvaluateUseCase) persist(ctx context.Context, result *domain.EvaluationResult) error {
	if u.results == nil {
		return nil
	}
	if err := u.results.Append(ctx, result); err != nil {
		return domain.NewStageError("persist", fmt.Errorf("failed to save evaluation %s: %w", result.ID, err))
	}
	return nil
}

// History lists stored results, newest first.
func (u *EvaluateUseCase) History(ctx context.Context, limit int) ([]domain.EvaluationResult, error) {
	if u.results == nil {
		return nil, nil
	}
	return u.results.List(ctx, limit)
}

// Overall is the mean of the metric means, summed in name order, or 0
// without metrics.
func Overall(metrics map[string]float64) float64 {
	if len(metrics) == 0 {
		return 0
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		sum += metrics[name]
	}
	return sum / float64(len(metrics))
}

// Band labels a score for reports. It is never used to gate anything.
func Band(score float64) string {
	switch {
	case score >= 0.8:
		return "excellent"
	case score >= 0.6:
		return "good"
	default:
		return "needs improvement"
	}
}
