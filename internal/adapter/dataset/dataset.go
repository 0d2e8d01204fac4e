// Package dataset stores evaluation test cases and results as JSON files.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.TestCaseStore = (*TestCaseFile)(nil)

// TestCaseFile is a JSON array of test cases on disk.
type TestCaseFile struct {
	path string
}

func NewTestCaseFile(path string) *TestCaseFile {
	return &TestCaseFile{path: path}
}

func (f *TestCaseFile) Path() string { return f.path }

func (f *TestCaseFile) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

func (f *TestCaseFile) Load() ([]domain.TestCase, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test cases: %w", err)
	}
	var cases []domain.TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse test cases in %s: %w", f.path, err)
	}
	return cases, nil
}

func (f *TestCaseFile) Save(cases []domain.TestCase) error {
	if cases == nil {
		cases = []domain.TestCase{}
	}
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal test cases: %w", err)
	}
	return writeAtomic(f.path, append(data, '\n'))
}

// writeAtomic writes through a temp file in the same directory so readers
// never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

const resultPrefix = "evaluation_"

var _ port.ResultStore = (*ResultDir)(nil)

// ResultDir writes one evaluation_YYYYMMDD_HHMMSS.json file per result.
type ResultDir struct {
	dir string
}

func NewResultDir(dir string) *ResultDir {
	return &ResultDir{dir: dir}
}

// Append writes result to a new file. An existing file is never replaced; a
// numeric suffix is added instead.
func (d *ResultDir) Append(_ context.Context, result *domain.EvaluationResult) error {
	_, err := d.Write(result)
	return err
}

// Write is Append that also reports the file it created.
func (d *ResultDir) Write(result *domain.EvaluationResult) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	base := resultPrefix + result.Timestamp.Format("20060102_150405")
	for i := 0; ; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(d.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, f.Close()
	}
}

// List reads result files newest first.
func (d *ResultDir) List(_ context.Context, limit int) ([]domain.EvaluationResult, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), resultPrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	results := make([]domain.EvaluationResult, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var r domain.EvaluationResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// Tee appends to every store and lists from the first.
type Tee []port.ResultStore

func (t Tee) Append(ctx context.Context, result *domain.EvaluationResult) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) List(ctx context.Context, limit int) ([]domain.EvaluationResult, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return t[0].List(ctx, limit)
}
