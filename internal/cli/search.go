package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the passages a question would retrieve",
	Long: `Embed the query and list the closest chunks in the collection, most similar
first, without calling the language model.

Examples:
  ragqa search "hypertension management"
  ragqa search "drug interactions" --top-k 10 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

type searchHit struct {
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
	Page   int     `json:"page,omitempty"`
	Chunk  int     `json:"chunk_index"`
	Text   string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()

	retriever, err := a.Retriever(ctx)
	if err != nil {
		return err
	}

	topK := GetConfig().Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	chunks, err := retriever.Retrieve(ctx, strings.Join(args, " "), topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	hits := make([]searchHit, len(chunks))
	for i, sc := range chunks {
		hits[i] = searchHit{
			Rank:   i + 1,
			Score:  sc.Score,
			Source: sc.Chunk.Source,
			Page:   sc.Chunk.Page,
			Chunk:  sc.Chunk.Index,
			Text:   sc.Chunk.Text,
		}
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for _, h := range hits {
		page := "N/A"
		if h.Page > 0 {
			page = fmt.Sprint(h.Page)
		}
		fmt.Printf("%d. [%.4f] %s (page %s, chunk %d)\n", h.Rank, h.Score, h.Source, page, h.Chunk)
		fmt.Printf("   %s\n\n", preview(h.Text, 200))
	}
	return nil
}

// preview flattens whitespace and cuts text to at most n runes.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
