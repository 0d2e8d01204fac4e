package usecase

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"ragqa/internal/domain"
)

// RecommendationThreshold is the score below which a metric gets advice in
// the report.
const RecommendationThreshold = 0.7

//go:embed templates/report.md.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Parse(reportTemplate))

// analysis holds the excellent/good/poor lines per metric.
var analysis = map[string][3]string{
	"faithfulness": {
		"Excellent faithfulness: answers are well grounded in the source documents.",
		"Good faithfulness: most answers are grounded, some improvement is possible.",
		"Poor faithfulness: answers may contain claims the sources do not support.",
	},
	"answer_relevancy": {
		"Excellent relevancy: answers directly address the questions.",
		"Good relevancy: answers are mostly relevant.",
		"Poor relevancy: answers may be off-topic.",
	},
	"context_precision": {
		"Excellent context precision: retrieved contexts are highly relevant.",
		"Good context precision: most retrieved contexts are relevant.",
		"Poor context precision: too much irrelevant context is retrieved.",
	},
	"context_recall": {
		"Excellent context recall: retrieval finds most of the relevant information.",
		"Good context recall: retrieval finds much of the relevant information.",
		"Poor context recall: retrieval misses important information.",
	},
}

var recommendations = map[string][]string{
	"faithfulness": {
		"Improve prompt engineering to reduce unsupported claims",
		"Consider adjusting retrieval parameters",
	},
	"context_precision": {
		"Improve the document chunking strategy",
		"Tune similarity search parameters",
	},
	"context_recall": {
		"Increase the number of retrieved chunks (top_k)",
		"Try a stronger embedding model",
	},
	"answer_relevancy": {
		"Refine the answer prompt",
		"Improve question understanding and context utilisation",
	},
	"answer_similarity": {
		"Check that ground truths and answers are generated from the same contexts",
	},
	"answer_correctness": {
		"Review failing questions for missing or outdated source documents",
	},
}

type reportMetric struct {
	Title    string
	Score    float64
	Band     string
	Analysis string
}

type reportText struct {
	Title string
	Text  string
}

type reportFailure struct {
	Question string
	Metrics  string
}

type reportData struct {
	Date            string
	Mode            string
	NumQuestions    int
	Overall         float64
	Band            string
	Metrics         []reportMetric
	Explanations    []reportText
	Recommendations []string
	Threshold       float64
	Failures        []reportFailure
}

// RenderReport writes a markdown report of result. describe, when not nil,
// supplies one-line metric explanations.
func RenderReport(w io.Writer, result *domain.EvaluationResult, describe func(string) string) error {
	data := reportData{
		Date:         result.Timestamp.Format("2006-01-02 15:04:05"),
		Mode:         result.Mode,
		NumQuestions: result.NumQuestions,
		Overall:      result.Overall,
		Band:         Band(result.Overall),
		Threshold:    RecommendationThreshold,
	}

	for _, name := range result.MetricNames() {
		score := result.Metrics[name]
		m := reportMetric{Title: metricTitle(name), Score: score, Band: Band(score)}
		if lines, ok := analysis[name]; ok {
			switch {
			case score >= 0.8:
				m.Analysis = lines[0]
			case score >= 0.6:
				m.Analysis = lines[1]
			default:
				m.Analysis = lines[2]
			}
		}
		data.Metrics = append(data.Metrics, m)

		if describe != nil {
			if text := describe(name); text != "" {
				data.Explanations = append(data.Explanations, reportText{Title: m.Title, Text: text})
			}
		}
		if score < RecommendationThreshold {
			data.Recommendations = append(data.Recommendations, recommendations[name]...)
		}
	}

	for _, d := range result.Details {
		if len(d.Errors) == 0 {
			continue
		}
		names := make([]string, 0, len(d.Errors))
		for name := range d.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		data.Failures = append(data.Failures, reportFailure{Question: d.Question, Metrics: strings.Join(names, ", ")})
	}

	if err := reportTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// metricTitle turns "answer_relevancy" into "Answer Relevancy".
func metricTitle(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
