package domain

import (
	"sort"
	"time"
)

// Page is one extracted page (or segment) of a loaded document.
// Number is 1-based; 0 means the loader had no page information.
type Page struct {
	Number int
	Text   string
}

type Document struct {
	ID     string
	Source Source
	Pages  []Page
}

// Chunk is a bounded slice of a document page.
type Chunk struct {
	ID     string
	DocID  string
	Index  int
	Page   int
	Offset int
	Source string
	Text   string
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// AnswerRecord is the outcome of one grounded query.
type AnswerRecord struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Context     string    `json:"context"`
	Sources     []string  `json:"sources"`
	ChunksFound int       `json:"chunks_found"`
	Contexts    []string  `json:"contexts"`
	AnsweredAt  time.Time `json:"answered_at"`
}

// QueryOutcome is one slot of a concurrent query batch.
type QueryOutcome struct {
	Question string
	Record   *AnswerRecord
	Err      error
}

// UniqueSources returns the set of source identifiers among chunks, sorted
// so the set renders stably. Chunks without a source contribute nothing.
func UniqueSources(chunks []ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		name := c.Chunk.Source
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// UnknownSource is the context label used when a chunk carries no source.
const UnknownSource = "Unknown"

// LoadFailure records a document that could not be loaded during ingestion.
type LoadFailure struct {
	Source Source
	Err    error
}

type IngestResult struct {
	Documents int
	Pages     int
	Chunks    int
	Files     []string
	Failures  []LoadFailure
}

// PartialErr reports skipped documents as an ErrPartialIngestion stage error,
// or nil when every document loaded.
func (r *IngestResult) PartialErr() error {
	if len(r.Failures) == 0 {
		return nil
	}
	inputs := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		inputs[i] = f.Source.Location
	}
	return NewStageError("load", ErrPartialIngestion, inputs...)
}

// TestCase is one evaluation sample. The JSON field names are part of the
// persisted dataset format.
type TestCase struct {
	Question    string         `json:"question"`
	GroundTruth string         `json:"ground_truth"`
	Contexts    []string       `json:"contexts"`
	Answer      string         `json:"answer"`
	Metadata    map[string]any `json:"metadata"`
}

// QuestionDetail holds per-question scores of an evaluation run.
type QuestionDetail struct {
	Question      string             `json:"question"`
	Answer        string             `json:"answer"`
	ContextsCount int                `json:"contexts_count"`
	Scores        map[string]float64 `json:"individual_scores"`
	Errors        map[string]string  `json:"errors,omitempty"`
}

// EvaluationResult is a write-once record of one scoring run.
type EvaluationResult struct {
	ID           string             `json:"id"`
	Timestamp    time.Time          `json:"timestamp"`
	Mode         string             `json:"mode"`
	NumQuestions int                `json:"num_questions"`
	Metrics      map[string]float64 `json:"metrics"`
	Overall      float64            `json:"overall"`
	Details      []QuestionDetail   `json:"detailed_results"`
}

// MetricNames returns the metric names of the result in sorted order.
func (r *EvaluationResult) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
