package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragqa/internal/domain"
)

var (
	askTopK        int
	askJSON        bool
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>...",
	Short: "Answer questions from the indexed documents",
	Long: `Answer one or more questions using the passages retrieved from the
collection. Several questions are answered concurrently and printed in the
order given; a failed question does not stop the others.

Examples:
  ragqa ask "What are the main side effects of ACE inhibitors?"
  ragqa ask "first question" "second question" --top-k 6 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the context given to the model")
}

type askOutput struct {
	Question string               `json:"question"`
	Record   *domain.AnswerRecord `json:"record,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()

	queryUC, err := a.Query(ctx)
	if err != nil {
		return err
	}

	topK := GetConfig().Retrieve.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	outcomes := queryUC.QueryMany(ctx, args, topK)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}

	if askJSON {
		out := make([]askOutput, len(outcomes))
		for i, o := range outcomes {
			out[i] = askOutput{Question: o.Question, Record: o.Record}
			if o.Err != nil {
				out[i].Error = o.Err.Error()
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		for i, o := range outcomes {
			if i > 0 {
				fmt.Println(strings.Repeat("-", 60))
			}
			printAnswer(o)
		}
	}

	if failed == len(outcomes) {
		return fmt.Errorf("no question could be answered")
	}
	return nil
}

func printAnswer(o domain.QueryOutcome) {
	fmt.Printf("Q: %s\n\n", o.Question)
	if o.Err != nil {
		fmt.Printf("Error: %v\n", o.Err)
		return
	}

	r := o.Record
	fmt.Printf("%s\n", r.Answer)
	if askShowContext && r.Context != "" {
		fmt.Printf("\nContext:\n%s\n", r.Context)
	}
	if len(r.Sources) > 0 {
		fmt.Printf("\nSources (%d chunks): %s\n", r.ChunksFound, strings.Join(r.Sources, ", "))
	}
}
