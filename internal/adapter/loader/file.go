package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ragqa/internal/domain"
)

type FileLoader struct {
	pdf *PDFExtractor
}

func NewFileLoader(pdf *PDFExtractor) *FileLoader {
	return &FileLoader{pdf: pdf}
}

func (l *FileLoader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.pdf.Extract(ctx, path)
	case ".html", ".htm":
		return textPages(StripHTML(string(data))), nil
	default:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s is not a text file", path)
		}
		return textPages(string(data)), nil
	}
}
