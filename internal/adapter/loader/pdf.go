package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"ragqa/internal/domain"
)

const defaultPDFToText = "pdftotext"

var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH: install poppler-utils to ingest PDF files")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// PDFExtractor shells out to pdftotext. Pages come back separated by form
// feeds, which keeps page numbers for attribution.
type PDFExtractor struct {
	tool   string
	runner CommandRunner
	lookup func(string) (string, error)
}

func NewPDFExtractor(tool string, runner CommandRunner) *PDFExtractor {
	if tool == "" {
		tool = defaultPDFToText
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &PDFExtractor{tool: tool, runner: runner, lookup: exec.LookPath}
}

func (p *PDFExtractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	if _, err := p.lookup(p.tool); err != nil {
		return nil, ErrPDFToolNotFound
	}

	out, err := p.runner.Run(ctx, p.tool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed for %s: %w", path, err)
	}
	return splitPages(string(out)), nil
}

func splitPages(text string) []domain.Page {
	raw := strings.Split(text, "\f")
	pages := make([]domain.Page, 0, len(raw))
	for i, t := range raw {
		if strings.TrimSpace(t) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: t})
	}
	return pages
}
