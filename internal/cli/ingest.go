package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragqa/internal/adapter/fs"
	"ragqa/internal/domain"
)

var ingestRebuild bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|glob|url>...",
	Short: "Load, chunk, embed and index documents",
	Long: `Ingest documents into the configured collection. Arguments may be files,
directories (walked with the configured include/exclude patterns), glob
patterns or http(s) URLs. PDF, text, markdown and HTML are supported.

Documents that fail to load are reported and skipped. If the collection was
built with a different embedding model or chunking, ingest refuses to mix
vector spaces unless --rebuild is given.

Examples:
  ragqa ingest ./papers
  ragqa ingest "docs/**/*.md" https://example.org/guideline.pdf
  ragqa ingest --rebuild ./papers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "drop the collection first if its settings changed")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()
	cfg := GetConfig()
	coll := cfg.VectorStore.Collection

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	sources, err := walker.Expand(args)
	if err != nil {
		return fmt.Errorf("failed to expand sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no documents matched %v", args)
	}

	embedder, err := a.Embedder(ctx)
	if err != nil {
		return err
	}
	index, err := a.Index()
	if err != nil {
		return err
	}
	state, err := a.stateStore()
	if err != nil {
		return err
	}

	// Check the collection was built the way we would build it now
	settings := a.indexSettings(embedder)
	check, err := state.CheckManifest(coll, settings)
	if err != nil {
		return fmt.Errorf("failed to check collection manifest: %w", err)
	}
	if check.NeedsRebuild {
		if !ingestRebuild {
			return fmt.Errorf("collection %q needs a rebuild (%s); rerun with --rebuild", coll, check.Reason)
		}
		fmt.Printf("Collection rebuild required: %s\n", check.Reason)
		fmt.Println("Dropping existing collection...")
		if err := index.DeleteCollection(ctx, coll); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		if err := state.DeleteManifest(coll); err != nil {
			return fmt.Errorf("failed to drop manifest: %w", err)
		}
	}

	ingestUC, err := a.Ingest(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Loading %d document(s)...\n", len(sources))

	bar := newLoadBar(len(sources))
	var barMu sync.Mutex
	startTime := time.Now()
	processed := 0
	ingestUC.OnLoaded(func(src domain.Source, _ error) {
		barMu.Lock()
		defer barMu.Unlock()

		processed++
		bar.Set(processed)
		rate := float64(processed) / time.Since(startTime).Seconds()
		if rate > 0 && processed < len(sources) {
			eta := time.Duration(float64(len(sources)-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Loading[reset] ETA: %s", formatDuration(eta)))
		}
	})

	result, err := ingestUC.Ingest(ctx, sources)
	bar.Finish()
	if err != nil && !errors.Is(err, domain.ErrPartialIngestion) {
		printLoadFailures(result)
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if result.Chunks > 0 {
		if err := state.PutManifest(coll, settings); err != nil {
			return fmt.Errorf("failed to record collection manifest: %w", err)
		}
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Collection:     %s (%s)\n", coll, cfg.VectorStore.Backend)
	fmt.Printf("  Documents:      %d\n", result.Documents)
	fmt.Printf("  Pages:          %d\n", result.Pages)
	fmt.Printf("  Chunks indexed: %d\n", result.Chunks)
	printLoadFailures(result)
	return nil
}

func newLoadBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Loading[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func printLoadFailures(result *domain.IngestResult) {
	if result == nil || len(result.Failures) == 0 {
		return
	}
	fmt.Printf("\nSkipped:\n")
	for _, f := range result.Failures {
		fmt.Printf("  - %s: %v\n", f.Source.Location, f.Err)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
