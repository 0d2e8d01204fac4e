package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestRenderReport(t *testing.T) {
	result := &domain.EvaluationResult{
		Timestamp:    time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC),
		Mode:         ModeFull,
		NumQuestions: 2,
		Metrics:      map[string]float64{"faithfulness": 0.9, "context_recall": 0.5},
		Overall:      0.7,
		Details: []domain.QuestionDetail{
			{Question: "q1"},
			{Question: "q2", Errors: map[string]string{"context_recall": "boom"}},
		},
	}

	var b strings.Builder
	require.NoError(t, RenderReport(&b, result, func(name string) string { return "about " + name }))
	out := b.String()

	assert.Contains(t, out, "**Evaluation Date:** 2025-05-06 07:08:09")
	assert.Contains(t, out, "**Questions Evaluated:** 2")
	assert.Contains(t, out, "**Overall Score:** 0.7000 (good)")
	assert.Contains(t, out, "- **Faithfulness:** 0.9000 [excellent]")
	assert.Contains(t, out, "- **Context Recall:** 0.5000 [needs improvement]")
	assert.Contains(t, out, "- **Context Recall:** about context_recall")
	assert.Contains(t, out, "Poor context recall")
	assert.Contains(t, out, "Excellent faithfulness")
	assert.Contains(t, out, "Increase the number of retrieved chunks (top_k)")
	assert.NotContains(t, out, "Improve prompt engineering")
	assert.Contains(t, out, "- q2: context_recall")

	// Context Recall sorts before Faithfulness.
	assert.Less(t, strings.Index(out, "Context Recall:"), strings.Index(out, "Faithfulness:"))
}

func TestRenderReport_NoRecommendations(t *testing.T) {
	result := &domain.EvaluationResult{Metrics: map[string]float64{"faithfulness": 0.95}, Overall: 0.95}

	var b strings.Builder
	require.NoError(t, RenderReport(&b, result, nil))
	assert.Contains(t, b.String(), "No metric is below 0.7.")
	assert.NotContains(t, b.String(), "Metric Explanations")
}

func TestMetricTitle(t *testing.T) {
	assert.Equal(t, "Answer Relevancy", metricTitle("answer_relevancy"))
	assert.Equal(t, "Faithfulness", metricTitle("faithfulness"))
}
