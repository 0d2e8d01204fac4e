package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/adapter/analyzer"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/domain"
)

// scriptedLLM answers prompts by the first matching marker.
type scriptedLLM struct {
	replies map[string]string
	prompts []string
	err     error
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	for marker, reply := range s.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", nil
}

func (s *scriptedLLM) ModelName() string { return "scripted" }

var sample = domain.TestCase{
	Question:    "What are the side effects of ACE inhibitors?",
	GroundTruth: "ACE inhibitors can cause a dry cough. They may also cause dizziness.",
	Contexts: []string{
		"ACE inhibitors commonly cause a persistent dry cough.",
		"Beta blockers slow the heart rate.",
		"Dizziness is reported with ACE inhibitors.",
	},
	Answer: "ACE inhibitors cause a dry cough and dizziness.",
}

func TestFaithfulness(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{
		"standalone factual statements": "1. ACE inhibitors cause a dry cough.\n2. ACE inhibitors cause dizziness.\n3. They cure cancer.",
		"directly inferred":             "1: yes\n2: Yes\n3: no",
	}}

	score, err := NewFaithfulness(llm).Score(context.Background(), sample)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
	assert.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "3. They cure cancer.")
}

func TestFaithfulness_MalformedVerdicts(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{
		"standalone factual statements": "1. One.\n2. Two.",
		"directly inferred":             "1: yes",
	}}
	_, err := NewFaithfulness(llm).Score(context.Background(), sample)
	assert.ErrorIs(t, err, domain.ErrMalformedGeneration)
}

func TestFaithfulness_RequiresAnswer(t *testing.T) {
	tc := sample
	tc.Answer = "  "
	_, err := NewFaithfulness(&scriptedLLM{}).Score(context.Background(), tc)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestAnswerRelevancy(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{
		"would be a complete response": "1. What are the side effects of ACE inhibitors?\n2. What are the side effects of ACE inhibitors?",
	}}
	m := NewAnswerRelevancy(llm, embedding.NewMockEmbedder(64), 2)

	score, err := m.Score(context.Background(), sample)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
	assert.Contains(t, llm.prompts[0], "Write 2 different questions")
}

func TestAnswerRelevancy_ProviderError(t *testing.T) {
	cause := domain.Transient("complete", errors.New("503"))
	m := NewAnswerRelevancy(&scriptedLLM{err: cause}, embedding.NewMockEmbedder(8), 3)
	_, err := m.Score(context.Background(), sample)
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
}

// shortEmbedder returns one vector fewer than asked for.
type shortEmbedder struct{ *embedding.MockEmbedder }

func (e shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.MockEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return out[:len(out)-1], nil
}

func TestEmbeddingMetrics_ShortBatchFails(t *testing.T) {
	emb := shortEmbedder{embedding.NewMockEmbedder(8)}
	llm := &scriptedLLM{replies: map[string]string{
		"would be a complete response": "1. What are the side effects of ACE inhibitors?",
	}}

	_, err := NewAnswerRelevancy(llm, emb, 1).Score(context.Background(), sample)
	assert.ErrorIs(t, err, domain.ErrTransientProvider)

	_, err = NewAnswerSimilarity(emb).Score(context.Background(), sample)
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
}

func TestContextPrecision(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{
		"useful in arriving": "1: yes\n2: no\n3: yes",
	}}
	score, err := NewContextPrecision(llm).Score(context.Background(), sample)
	require.NoError(t, err)
	// (1/1 + 2/3) / 2
	assert.InDelta(t, (1.0+2.0/3.0)/2, score, 1e-9)
}

func TestContextPrecision_NeedsGroundTruth(t *testing.T) {
	tc := sample
	tc.GroundTruth = ""
	_, err := NewContextPrecision(&scriptedLLM{}).Score(context.Background(), tc)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestContextRecall(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{
		"attributed to the context": "1: yes\n2: no",
	}}
	score, err := NewContextRecall(llm).Score(context.Background(), sample)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Contains(t, llm.prompts[0], "2. They may also cause dizziness.")
}

func TestEmptyContextsScoreZero(t *testing.T) {
	tc := sample
	tc.Contexts = nil

	score, err := NewContextRecall(&scriptedLLM{}).Score(context.Background(), tc)
	require.NoError(t, err)
	assert.Zero(t, score)

	score, err = NewContextPrecision(&scriptedLLM{}).Score(context.Background(), tc)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestAnswerSimilarityAndCorrectness(t *testing.T) {
	emb := embedding.NewMockEmbedder(128)
	tc := domain.TestCase{Answer: "Metformin lowers blood glucose.", GroundTruth: "Metformin lowers blood glucose."}

	sim, err := NewAnswerSimilarity(emb).Score(context.Background(), tc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)

	corr := NewAnswerCorrectness(analyzer.NewTokenizer(true), NewAnswerSimilarity(emb))
	score, err := corr.Score(context.Background(), tc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)

	tc.Answer = "Insulin therapy."
	score, err = corr.Score(context.Background(), tc)
	require.NoError(t, err)
	assert.Less(t, score, 0.26)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestTermF1(t *testing.T) {
	assert.InDelta(t, 2*0.5*1.0/1.5, termF1([]string{"a", "b"}, []string{"a"}), 1e-9)
	assert.Zero(t, termF1(nil, []string{"a"}))
	assert.Zero(t, termF1([]string{"x"}, []string{"a"}))
}

func TestParsing(t *testing.T) {
	assert.Equal(t, []string{"first", "second"}, numberedItems("Here you go:\n1. first\n2) second\n"))
	assert.Equal(t, []string{"alpha", "beta"}, numberedItems("- alpha\n- beta"))

	v, err := parseVerdicts("**1**: yes\n2. no\n3 - YES", 3)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, v)

	assert.Equal(t, []string{"One.", "Two?", "Three"}, splitSentences("One. Two?\nThree"))
}

func TestBuild(t *testing.T) {
	ms, err := Build(AllNames, Deps{LLM: &scriptedLLM{}, Embedder: embedding.NewMockEmbedder(8), Tokenizer: analyzer.NewTokenizer(true)})
	require.NoError(t, err)
	require.Len(t, ms, len(AllNames))
	for i, m := range ms {
		assert.Equal(t, AllNames[i], m.Name())
		assert.NotEmpty(t, Describe(m.Name()))
	}

	_, err = Build([]string{"bleu"}, Deps{})
	assert.Error(t, err)
}
