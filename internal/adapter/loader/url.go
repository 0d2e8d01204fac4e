package loader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"ragqa/internal/domain"
)

const maxDownloadBytes = 64 << 20

type URLLoader struct {
	client *http.Client
	pdf    *PDFExtractor
}

func NewURLLoader(client *http.Client, pdf *PDFExtractor) *URLLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLLoader{client: client, pdf: pdf}
}

func (l *URLLoader) Load(ctx context.Context, rawURL string) ([]domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", rawURL, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf" || strings.EqualFold(path.Ext(req.URL.Path), ".pdf"):
		return l.loadPDF(ctx, data)
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return textPages(StripHTML(string(data))), nil
	default:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s did not return text (content type %q)", rawURL, mediaType)
		}
		return textPages(string(data)), nil
	}
}

func (l *URLLoader) loadPDF(ctx context.Context, data []byte) ([]domain.Page, error) {
	f, err := os.CreateTemp("", "ragqa-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return l.pdf.Extract(ctx, f.Name())
}
