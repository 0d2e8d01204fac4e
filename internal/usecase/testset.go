package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
)

// DefaultSeedQueries drive test-case generation when none are configured.
var DefaultSeedQueries = []string{
	"diabetes treatment approaches",
	"cardiovascular medication side effects",
	"hypertension management protocols",
	"clinical trial methodologies",
	"patient safety considerations",
	"drug interactions and contraindications",
	"therapeutic effectiveness measures",
	"adverse events reporting",
}

const (
	questionContexts   = 3
	questionContextLen = 500
	minQuestionLen     = 10
)

// GenerationParams controls GenerateTestCases.
type GenerationParams struct {
	Seeds            []string
	NumCases         int
	TopK             int
	QuestionsPerSeed int
}

func (p GenerationParams) withDefaults() GenerationParams {
	if len(p.Seeds) == 0 {
		p.Seeds = DefaultSeedQueries
	}
	if p.NumCases <= 0 {
		p.NumCases = 10
	}
	if p.TopK <= 0 {
		p.TopK = 4
	}
	if p.QuestionsPerSeed <= 0 {
		p.QuestionsPerSeed = 3
	}
	return p
}

type genState int

const (
	stateNew genState = iota
	stateQuestionsGenerated
	stateGroundTruthGenerated
	stateAnswered
	stateComplete
)

func (s genState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateQuestionsGenerated:
		return "questions_generated"
	case stateGroundTruthGenerated:
		return "ground_truth_generated"
	case stateAnswered:
		return "answered"
	case stateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// seedRun carries one seed through generation.
type seedRun struct {
	seed        string
	state       genState
	contexts    []domain.ScoredChunk
	question    string
	groundTruth string
	record      *domain.AnswerRecord
}

// TestSetGenerator synthesises evaluation test cases from the indexed
// documents.
type TestSetGenerator struct {
	retriever   port.Retriever
	llm         port.LLM
	query       *QueryUseCase
	concurrency int
	log         log.FieldLogger
}

func NewTestSetGenerator(
	retriever port.Retriever,
	llm port.LLM,
	query *QueryUseCase,
	concurrency int,
	logger log.FieldLogger,
) *TestSetGenerator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TestSetGenerator{
		retriever:   retriever,
		llm:         llm,
		query:       query,
		concurrency: concurrency,
		log:         logging.OrDiscard(logger),
	}
}

// GenerateTestCases runs every seed (up to NumCases of them) through
// generation. A seed that fails at any step is logged and dropped; the others
// continue. Cases are returned in seed order.
func (g *TestSetGenerator) GenerateTestCases(ctx context.Context, params GenerationParams) ([]domain.TestCase, error) {
	params = params.withDefaults()
	seeds := params.Seeds
	if len(seeds) > params.NumCases {
		seeds = seeds[:params.NumCases]
	}

	cases := make([]*domain.TestCase, len(seeds))
	errs := make([]error, len(seeds))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, seed := range seeds {
		eg.Go(func() error {
			run := &seedRun{seed: seed}
			tc, err := g.runSeed(ctx, run, params)
			if err != nil {
				g.log.WithError(err).WithFields(log.Fields{
					"seed":  seed,
					"state": run.state.String(),
				}).Warn("dropping seed")
				errs[i] = err
				return nil
			}
			cases[i] = tc
			return nil
		})
	}
	eg.Wait()

	var out []domain.TestCase
	for _, tc := range cases {
		if tc != nil {
			out = append(out, *tc)
		}
	}
	if len(out) == 0 {
		return nil, domain.NewStageError("generate", fmt.Errorf("no test cases generated: %w", errors.Join(errs...)), seeds...)
	}
	return out, nil
}

func (g *TestSetGenerator) runSeed(ctx context.Context, run *seedRun, params GenerationParams) (*domain.TestCase, error) {
	for run.state != stateComplete {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := g.step(ctx, run, params); err != nil {
			return nil, err
		}
	}

	contexts := make([]string, len(run.contexts))
	for i, c := range run.contexts {
		contexts[i] = c.Chunk.Text
	}
	return &domain.TestCase{
		Question:    run.question,
		GroundTruth: run.groundTruth,
		Contexts:    run.record.Contexts,
		Answer:      run.record.Answer,
		Metadata: map[string]any{
			"seed_query":         run.seed,
			"sources":            run.record.Sources,
			"chunks_found":       run.record.ChunksFound,
			"reference_contexts": contexts,
		},
	}, nil
}

// step advances run by one state.
func (g *TestSetGenerator) step(ctx context.Context, run *seedRun, params GenerationParams) error {
	switch run.state {
	case stateNew:
		chunks, err := g.retriever.Retrieve(ctx, run.seed, params.TopK)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return domain.ErrNoContext
		}
		run.contexts = chunks

		questions, err := g.generateQuestions(ctx, chunks, params.QuestionsPerSeed)
		if err != nil {
			return err
		}
		run.question = questions[0]
		run.state = stateQuestionsGenerated

	case stateQuestionsGenerated:
		prompt, err := renderPrompt("ground_truth", struct {
			Context  string
			Question string
		}{joinTexts(run.contexts), run.question})
		if err != nil {
			return err
		}
		truth, err := g.llm.Complete(ctx, prompt)
		if err != nil {
			return fmt.Errorf("failed to generate ground truth: %w", err)
		}
		run.groundTruth = strings.TrimSpace(truth)
		if run.groundTruth == "" {
			return fmt.Errorf("%w: empty ground truth", domain.ErrMalformedGeneration)
		}
		run.state = stateGroundTruthGenerated

	case stateGroundTruthGenerated:
		record, err := g.query.Query(ctx, run.question, params.TopK)
		if err != nil {
			return err
		}
		run.record = record
		run.state = stateAnswered

	case stateAnswered:
		run.state = stateComplete
	}
	return nil
}

func (g *TestSetGenerator) generateQuestions(ctx context.Context, chunks []domain.ScoredChunk, n int) ([]string, error) {
	var contexts []string
	for i, c := range chunks {
		if i == questionContexts {
			break
		}
		contexts = append(contexts, truncateRunes(c.Chunk.Text, questionContextLen))
	}

	prompt, err := renderPrompt("questions", struct {
		N        int
		Contexts []string
	}{n, contexts})
	if err != nil {
		return nil, err
	}
	out, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	questions := ParseQuestions(out)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no usable question in model output", domain.ErrMalformedGeneration)
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

// ParseQuestions extracts questions from numbered model output. A line counts
// when one of its first three characters is a digit; the numbering up to the
// first '.' is dropped and questions of ten characters or fewer are ignored.
func ParseQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !hasDigit(firstRunes(line, 3)) {
			continue
		}
		if _, rest, ok := strings.Cut(line, "."); ok {
			line = rest
		}
		q := strings.TrimSpace(line)
		if len([]rune(q)) > minQuestionLen {
			questions = append(questions, q)
		}
	}
	return questions
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func joinTexts(chunks []domain.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}
