package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestTestCaseFile_LoadSaveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval", "testset.json")
	f := NewTestCaseFile(path)
	assert.False(t, f.Exists())

	cases := []domain.TestCase{{
		Question:    "What is the dose?",
		GroundTruth: "10 mg daily.",
		Contexts:    []string{"Give 10 mg daily."},
		Answer:      "10 mg daily (dosing.pdf, page 2).",
		Metadata:    map[string]any{"seed_query": "dosing", "chunks_found": 3, "sources": []string{"dosing.pdf"}},
	}}
	require.NoError(t, f.Save(cases))
	assert.True(t, f.Exists())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := f.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "10 mg daily.", loaded[0].GroundTruth)
	assert.Equal(t, float64(3), loaded[0].Metadata["chunks_found"])

	require.NoError(t, f.Save(loaded))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"ground_truth": "10 mg daily."`)
}

func TestTestCaseFile_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := NewTestCaseFile(path).Load()
	assert.Error(t, err)
}

func TestResultDir_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	d := NewResultDir(dir)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	p1, err := d.Write(&domain.EvaluationResult{ID: "one", Timestamp: ts, Overall: 0.4})
	require.NoError(t, err)
	p2, err := d.Write(&domain.EvaluationResult{ID: "two", Timestamp: ts, Overall: 0.8})
	require.NoError(t, err)

	assert.Equal(t, "evaluation_20250102_030405.json", filepath.Base(p1))
	assert.Equal(t, "evaluation_20250102_030405_1.json", filepath.Base(p2))

	results, err := d.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].ID, results[1].ID}
	assert.ElementsMatch(t, []string{"one", "two"}, ids)
}

func TestResultDir_ListMissingDir(t *testing.T) {
	results, err := NewResultDir(filepath.Join(t.TempDir(), "none")).List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

type failingStore struct{}

func (failingStore) Append(context.Context, *domain.EvaluationResult) error {
	return errors.New("disk full")
}

func (failingStore) List(context.Context, int) ([]domain.EvaluationResult, error) { return nil, nil }

func TestTee(t *testing.T) {
	dir := NewResultDir(t.TempDir())
	tee := Tee{dir, failingStore{}}

	err := tee.Append(context.Background(), &domain.EvaluationResult{ID: "x", Timestamp: time.Now()})
	assert.Error(t, err)

	results, err := tee.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, results, 1, "the first store still received the result")
}
