package metrics

import (
	"embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"ragqa/internal/domain"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("metrics").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	ParseFS(promptFS, "prompts/*.tmpl"))

type promptData struct {
	Question    string
	Answer      string
	GroundTruth string
	Contexts    []string
	Items       []string
	N           int
}

func render(name string, data promptData) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return b.String(), nil
}

var (
	numberedLine = regexp.MustCompile(`^\s*\d+\s*[.)]\s*(.+)$`)
	verdictLine  = regexp.MustCompile(`(?i)^\s*\**\s*(\d+)\s*\**\s*[:.)\-]\s*\**\s*(yes|no)\b`)
	sentenceEnd  = regexp.MustCompile(`([.!?])\s+`)
)

// numberedItems returns the text of "1. foo" style lines. If the model
// ignored the numbering it falls back to every non-empty line.
func numberedItems(text string) []string {
	var numbered, plain []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				numbered = append(numbered, item)
			}
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line != "" {
			plain = append(plain, line)
		}
	}
	if len(numbered) > 0 {
		return numbered
	}
	return plain
}

// parseVerdicts reads "<n>: yes|no" lines for items 1..n. Every item must
// have a verdict.
func parseVerdicts(text string, n int) ([]bool, error) {
	verdicts := make([]bool, n)
	seen := make([]bool, n)
	for _, line := range strings.Split(text, "\n") {
		m := verdictLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 1 || i > n || seen[i-1] {
			continue
		}
		seen[i-1] = true
		verdicts[i-1] = strings.EqualFold(m[2], "yes")
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: no verdict for item %d", domain.ErrMalformedGeneration, i+1)
		}
	}
	return verdicts, nil
}

func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		marked := sentenceEnd.ReplaceAllString(line, "$1\n")
		for _, s := range strings.Split(marked, "\n") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func fraction(verdicts []bool) float64 {
	if len(verdicts) == 0 {
		return 0
	}
	yes := 0
	for _, v := range verdicts {
		if v {
			yes++
		}
	}
	return float64(yes) / float64(len(verdicts))
}
