// Package loader turns document sources into page text.
package loader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.Loader = (*Loader)(nil)

type Config struct {
	PDFToTextPath string
	HTTPTimeout   time.Duration
	HTTPClient    *http.Client
}

// Loader dispatches on the source kind to the file or URL loader.
type Loader struct {
	files *FileLoader
	urls  *URLLoader
}

func New(cfg Config) *Loader {
	pdf := NewPDFExtractor(cfg.PDFToTextPath, nil)
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Loader{
		files: NewFileLoader(pdf),
		urls:  NewURLLoader(client, pdf),
	}
}

func (l *Loader) Load(ctx context.Context, src domain.Source) ([]domain.Page, error) {
	switch src.Kind {
	case domain.LocalFile:
		return l.files.Load(ctx, src.Location)
	case domain.RemoteURL:
		return l.urls.Load(ctx, src.Location)
	default:
		return nil, fmt.Errorf("unsupported source kind %q for %s", src.Kind, src.Location)
	}
}

// textPages wraps extracted text as a single page without page information.
func textPages(text string) []domain.Page {
	return []domain.Page{{Number: 0, Text: text}}
}
