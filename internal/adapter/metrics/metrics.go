// Package metrics scores generated answers. LLM-judged metrics ask the model
// for numbered yes/no verdicts; the rest compare embeddings and terms.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragqa/internal/adapter/vecmath"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const (
	NameFaithfulness      = "faithfulness"
	NameAnswerRelevancy   = "answer_relevancy"
	NameContextPrecision  = "context_precision"
	NameContextRecall     = "context_recall"
	NameAnswerSimilarity  = "answer_similarity"
	NameAnswerCorrectness = "answer_correctness"
)

// ErrMissingInput means the test case lacks a field the metric needs, such
// as a ground truth in a reference-free run.
var ErrMissingInput = errors.New("test case lacks required field")

var (
	DefaultNames = []string{NameFaithfulness, NameAnswerRelevancy, NameContextPrecision, NameContextRecall}
	QuickNames   = []string{NameFaithfulness, NameAnswerRelevancy}
	AllNames     = []string{
		NameFaithfulness, NameAnswerRelevancy, NameContextPrecision,
		NameContextRecall, NameAnswerSimilarity, NameAnswerCorrectness,
	}
)

var descriptions = map[string]string{
	NameFaithfulness:      "How factually consistent the answer is with the retrieved context.",
	NameAnswerRelevancy:   "How directly the answer addresses the question.",
	NameContextPrecision:  "Whether the useful contexts are ranked above the rest.",
	NameContextRecall:     "How much of the reference answer the retrieved context covers.",
	NameAnswerSimilarity:  "Semantic similarity between the answer and the reference answer.",
	NameAnswerCorrectness: "Term overlap with the reference answer, blended with semantic similarity.",
}

// Describe returns a one-line explanation of a metric for reports.
func Describe(name string) string {
	return descriptions[name]
}

// Deps are the capabilities metrics may need.
type Deps struct {
	LLM       port.LLM
	Embedder  port.Embedder
	Tokenizer port.Tokenizer
}

// Build constructs the named metrics in order.
func Build(names []string, deps Deps) ([]port.Metric, error) {
	out := make([]port.Metric, 0, len(names))
	for _, name := range names {
		var m port.Metric
		switch name {
		case NameFaithfulness:
			m = NewFaithfulness(deps.LLM)
		case NameAnswerRelevancy:
			m = NewAnswerRelevancy(deps.LLM, deps.Embedder, 3)
		case NameContextPrecision:
			m = NewContextPrecision(deps.LLM)
		case NameContextRecall:
			m = NewContextRecall(deps.LLM)
		case NameAnswerSimilarity:
			m = NewAnswerSimilarity(deps.Embedder)
		case NameAnswerCorrectness:
			m = NewAnswerCorrectness(deps.Tokenizer, NewAnswerSimilarity(deps.Embedder))
		default:
			return nil, fmt.Errorf("unknown metric %q", name)
		}
		out = append(out, m)
	}
	return out, nil
}

func needField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingInput, name)
	}
	return nil
}

// embedAll embeds texts and checks that one vector came back per text.
func embedAll(ctx context.Context, embedder port.Embedder, texts []string) ([][]float32, error) {
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, domain.Transient("embed", fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Faithfulness is the share of answer statements the contexts support.
type Faithfulness struct {
	llm port.LLM
}

func NewFaithfulness(llm port.LLM) *Faithfulness {
	return &Faithfulness{llm: llm}
}

func (m *Faithfulness) Name() string { return NameFaithfulness }

func (m *Faithfulness) Score(ctx context.Context, tc domain.TestCase) (float64, error) {
	if err := needField("answer", tc.Answer); err != nil {
		return 0, err
	}

	prompt, err := render("statements", promptData{Question: tc.Question, Answer: tc.Answer})
	if err != nil {
		return 0, err
	}
	out, err := m.llm.Complete(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to extract statements: %w", err)
	}
	statements := numberedItems(out)
	if len(statements) == 0 {
		return 0, fmt.Errorf("%w: no statements in answer", domain.ErrMalformedGeneration)
	}
	if len(tc.Contexts) == 0 {
		return 0, nil
	}

	prompt, err = render("faithfulness", promptData{Contexts: tc.Contexts, Items: statements})
	if err != nil {
		return 0, err
	}
	out, err = m.llm.Complete(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to judge statements: %w", err)
	}
	verdicts, err := parseVerdicts(out, len(statements))
	if err != nil {
		return 0, err
	}
	return fraction(verdicts), nil
}

// AnswerRelevancy asks the model which questions the answer responds to and
// compares them with the real question in embedding space.
type AnswerRelevancy struct {
	llm      port.LLM
	embedder port.Embedder
	n        int
}

func NewAnswerRelevancy(llm port.LLM, embedder port.Embedder, n int) *AnswerRelevancy {
	if n < 1 {
		n = 3
	}
	return &AnswerRelevancy{llm: llm, embedder: embedder, n: n}
}

func (m *AnswerRelevancy) Name() string { return NameAnswerRelevancy }

func (m *AnswerRelevancy) Score(ctx context.Context, tc domain.TestCase) (float64, error) {
	if err := needField("question", tc.Question); err != nil {
		return 0, err
	}
	if err := needField("answer", tc.Answer); err != nil {
		return 0, err
	}

	prompt, err := render("relevancy", promptData{Answer: tc.Answer, N: m.n})
	if err != nil {
		return 0, err
	}
	out, err := m.llm.Complete(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to generate questions: %w", err)
	}
	generated := numberedItems(out)
	if len(generated) == 0 {
		return 0, fmt.Errorf("%w: no questions generated from answer", domain.ErrMalformedGeneration)
	}

	vectors, err := embedAll(ctx, m.embedder, append([]string{tc.Question}, generated...))
	if err != nil {
		return 0, fmt.Errorf("failed to embed questions: %w", err)
	}

	var sum float64
	for _, v := range vectors[1:] {
		sum += clamp01(vecmath.Cosine(vectors[0], v))
	}
	return sum / float64(len(generated)), nil
}

// ContextPrecision is the mean precision@k over the ranks of useful
// contexts.
type ContextPrecision struct {
	llm port.LLM
}

func NewContextPrecision(llm port.LLM) *ContextPrecision {
	return &ContextPrecision{llm: llm}
}

func (m *ContextPrecision) Name() string { return NameContextPrecision }

func (m *ContextPrecision) Score(ctx context.Context, tc domain.TestCase) (float64, error) {
	if err := needField("ground_truth", tc.GroundTruth); err != nil {
		return 0, err
	}
	if len(tc.Contexts) == 0 {
		return 0, nil
	}

	prompt, err := render("precision", promptData{Question: tc.Question, GroundTruth: tc.GroundTruth, Items: tc.Contexts})
	if err != nil {
		return 0, err
	}
	out, err := m.llm.Complete(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to judge contexts: %w", err)
	}
	verdicts, err := parseVerdicts(out, len(tc.Contexts))
	if err != nil {
		return 0, err
	}
	return averagePrecision(verdicts), nil
}

func averagePrecision(relevant []bool) float64 {
	var hits int
	var sum float64
	for k, ok := range relevant {
		if !ok {
			continue
		}
		hits++
		sum += float64(hits) / float64(k+1)
	}
	if hits == 0 {
		return 0
	}
	return sum / float64(hits)
}

// ContextRecall is the share of ground-truth sentences attributable to the
// contexts.
type ContextRecall struct {
	llm port.LLM
}

func NewContextRecall(llm port.LLM) *ContextRecall {
	return &ContextRecall{llm: llm}
}

func (m *ContextRecall) Name() string { return NameContextRecall }

func (m *ContextRecall) Score(ctx context.Context, tc domain.TestCase) (float64, error) {
	if err := needField("ground_truth", tc.GroundTruth); err != nil {
		return 0, err
	}
	sentences := splitSentences(tc.GroundTruth)
	if len(tc.Contexts) == 0 {
		return 0, nil
	}

	prompt, err := render("recall", promptData{Contexts: tc.Contexts, Items: sentences})
	if err != nil {
		return 0, err
	}
	out, err := m.llm.Complete(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to attribute ground truth: %w", err)
	}
	verdicts, err := parseVerdicts(out, len(sentences))
	if err != nil {
		return 0, err
	}
	return fraction(verdicts), nil
}

type AnswerSimilarity struct {
	embedder port.Embedder
}

func NewAnswerSimilarity(embedder port.Embedder) *AnswerSimilarity {
	return &AnswerSimilarity{embedder: embedder}
}

func (m *AnswerSimilarity) Name() string { return NameAnswerSimilarity }

func (m *AnswerSimilarity) Score(ctx context.Context, tc domain.TestCase) (float64, error) {
	if err := needField("answer", tc.Answer); err != nil {
		return 0, err
	}
	if err := needField("ground_truth", tc.GroundTruth); err != nil {
		return 0, err
	}
	vectors, err := embedAll(ctx, m.embedder, []string{tc.Answer, tc.GroundTruth})
	if err != nil {
		return 0, fmt.Errorf("failed to embed answers: %w", err)
	}
	return clamp01(vecmath.Cosine(vectors[0], vectors[1])), nil
}

// AnswerCorrectness blends term F1 against the ground truth with semantic
// similarity.
type AnswerCorrectness struct {
	tokenizer  port.Tokenizer
	similarity *AnswerSimilarity
	weight     float64
}

func NewAnswerCorrectness(tokenizer port.Tokenizer, similarity *AnswerSimilarity) *AnswerCorrectness {
	return &AnswerCorrectness{tokenizer: tokenizer, similarity: similarity, weight: 0.75}
}

func (m *AnswerCorrectness) Name() string { return NameAnswerCorrectness }

func (m *AnswerCorrectness) Score(ctx context.Context, tc domain.TestCase) (float64, error) {
	sim, err := m.similarity.Score(ctx, tc)
	if err != nil {
		return 0, err
	}
	f1 := termF1(m.tokenizer.Tokenize(tc.Answer), m.tokenizer.Tokenize(tc.GroundTruth))
	return clamp01(m.weight*f1 + (1-m.weight)*sim), nil
}

func termF1(predicted, reference []string) float64 {
	if len(predicted) == 0 || len(reference) == 0 {
		return 0
	}
	counts := make(map[string]int, len(reference))
	for _, t := range reference {
		counts[t]++
	}
	overlap := 0
	for _, t := range predicted {
		if counts[t] > 0 {
			counts[t]--
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	precision := float64(overlap) / float64(len(predicted))
	recall := float64(overlap) / float64(len(reference))
	return 2 * precision * recall / (precision + recall)
}
