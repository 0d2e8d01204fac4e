package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ragqa/internal/adapter/metrics"
	"ragqa/internal/domain"
	"ragqa/internal/usecase"
)

var (
	evalDataset    string
	evalRegenerate bool
	evalMetrics    []string
	evalReport     string
	evalJSON       bool
	evalNum        int
	evalLimit      int
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate retrieval and answer quality",
	Long: `Generate evaluation test sets from the indexed documents and score the
pipeline with LLM-judged metrics. Every run is saved as a JSON file in the
results directory and recorded in the evaluation history.`,
}

var evalGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a test set from the collection",
	Long: `Retrieve passages for each seed query, ask the model for questions about
them, answer each question through the pipeline and ask the model for a
reference answer. The test set is written to the dataset file.

Examples:
  ragqa eval generate
  ragqa eval generate --num 5 --dataset testset.json`,
	Args: cobra.NoArgs,
	RunE: runEvalGenerate,
}

var evalRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Score the pipeline on a test set",
	Long: `Load the dataset file (generating it first if missing) and score every test
case with the configured metrics.

Examples:
  ragqa eval run
  ragqa eval run --regenerate --metrics faithfulness,context_recall
  ragqa eval run --report report.md`,
	Args: cobra.NoArgs,
	RunE: runEvalRun,
}

var evalQuickCmd = &cobra.Command{
	Use:   "quick [question]...",
	Short: "Answer a few questions and score them without reference answers",
	Long: `Answer a short list of questions and score the answers with the
reference-free metrics (faithfulness and answer relevancy).

Examples:
  ragqa eval quick
  ragqa eval quick "What treatment protocols showed best outcomes?"`,
	RunE: runEvalQuick,
}

var evalHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past evaluation runs",
	Args:  cobra.NoArgs,
	RunE:  runEvalHistory,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.AddCommand(evalGenerateCmd, evalRunCmd, evalQuickCmd, evalHistoryCmd)

	evalCmd.PersistentFlags().StringVar(&evalDataset, "dataset", "", "test set file (default from config)")

	evalGenerateCmd.Flags().IntVarP(&evalNum, "num", "n", 0, "number of test cases (default from config)")

	evalRunCmd.Flags().BoolVar(&evalRegenerate, "regenerate", false, "generate a new test set even if the dataset exists")
	evalRunCmd.Flags().StringSliceVar(&evalMetrics, "metrics", nil, "metrics to compute (default from config)")

	for _, c := range []*cobra.Command{evalRunCmd, evalQuickCmd} {
		c.Flags().StringVar(&evalReport, "report", "", "write the markdown report to this file instead of stdout")
		c.Flags().BoolVar(&evalJSON, "json", false, "print the result as JSON instead of a report")
	}

	evalHistoryCmd.Flags().IntVarP(&evalLimit, "limit", "n", 10, "number of runs to show (0 for all)")
}

func runEvalGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()

	generator, err := a.Generator(ctx)
	if err != nil {
		return err
	}

	params := a.generationParams()
	if evalNum > 0 {
		params.NumCases = evalNum
	}

	cases, err := generator.GenerateTestCases(ctx, params)
	if err != nil {
		return fmt.Errorf("test set generation failed: %w", err)
	}

	ds := a.Dataset(evalDataset)
	if err := ds.Save(cases); err != nil {
		return fmt.Errorf("failed to save test set: %w", err)
	}

	fmt.Printf("Generated %d test case(s)\n", len(cases))
	for i, tc := range cases {
		fmt.Printf("  %d. %s\n", i+1, tc.Question)
	}
	fmt.Printf("\nSaved to: %s\n", statePath(datasetPath()))
	return nil
}

func runEvalRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()

	evalUC, err := a.Evaluate(ctx, evalMetrics)
	if err != nil {
		return err
	}

	params := a.generationParams()
	in := usecase.EvaluationInput{Dataset: a.Dataset(evalDataset), Generate: &params}
	if evalRegenerate {
		generator, err := a.Generator(ctx)
		if err != nil {
			return err
		}
		cases, err := generator.GenerateTestCases(ctx, params)
		if err != nil {
			return fmt.Errorf("test set generation failed: %w", err)
		}
		if err := in.Dataset.Save(cases); err != nil {
			return fmt.Errorf("failed to save test set: %w", err)
		}
		in = usecase.EvaluationInput{Cases: cases}
	}

	result, err := evalUC.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	return printResult(result)
}

func runEvalQuick(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()

	evalUC, err := a.Evaluate(ctx, nil)
	if err != nil {
		return err
	}

	questions := args
	if len(questions) == 0 {
		questions = GetConfig().Evaluation.QuickQuestions
	}

	result, err := evalUC.Quick(ctx, questions, GetConfig().Retrieve.TopK)
	if err != nil {
		return fmt.Errorf("quick evaluation failed: %w", err)
	}
	return printResult(result)
}

func runEvalHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()

	results, err := a.Results()
	if err != nil {
		return err
	}
	runs, err := results.List(ctx, evalLimit)
	if err != nil {
		return fmt.Errorf("failed to list evaluations: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No evaluations recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tMODE\tQUESTIONS\tOVERALL\t")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f (%s)\t\n",
			shortID(r.ID), r.Timestamp.Local().Format("2006-01-02 15:04"), r.Mode,
			r.NumQuestions, r.Overall, usecase.Band(r.Overall))
	}
	return w.Flush()
}

func printResult(result *domain.EvaluationResult) error {
	var out io.Writer = os.Stdout
	if evalReport != "" {
		f, err := os.Create(evalReport)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer f.Close()
		out = f
	}

	if evalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if err := usecase.RenderReport(out, result, metrics.Describe); err != nil {
		return err
	}
	if evalReport != "" {
		fmt.Printf("Overall score %.3f (%s). Report written to %s\n", result.Overall, usecase.Band(result.Overall), evalReport)
	}
	return nil
}

func datasetPath() string {
	if evalDataset != "" {
		return evalDataset
	}
	return GetConfig().Evaluation.DatasetPath
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
