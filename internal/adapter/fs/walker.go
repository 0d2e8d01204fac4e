package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ragqa/internal/domain"
)

// DefaultIncludes matches the document formats the loader understands.
var DefaultIncludes = []string{"**/*.{pdf,txt,md,markdown,html,htm}"}

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns the matching files under root in lexical order.
func (w *Walker) Walk(root string) ([]string, error) {
	var files []string

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// Expand resolves CLI arguments into sources, keeping argument order. URLs
// pass through, directories are walked, and glob patterns are matched.
func (w *Walker) Expand(args []string) ([]domain.Source, error) {
	var sources []domain.Source
	seen := make(map[string]bool)
	add := func(src domain.Source) {
		if seen[src.Location] {
			return
		}
		seen[src.Location] = true
		sources = append(sources, src)
	}

	for _, arg := range args {
		src := domain.ParseSource(arg)
		if src.Kind == domain.RemoteURL {
			add(src)
			continue
		}

		if strings.ContainsAny(arg, "*?[{") {
			matches, err := doublestar.FilepathGlob(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
			}
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && !info.IsDir() {
					add(domain.FileSource(m))
				}
			}
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			// Missing files surface as load failures during ingestion.
			add(src)
			continue
		}
		if !info.IsDir() {
			add(src)
			continue
		}

		files, err := w.Walk(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
		for _, f := range files {
			add(domain.FileSource(f))
		}
	}
	return sources, nil
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
