package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently answered questions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of answers to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if !cfg.History.Enabled {
		return fmt.Errorf("answer history is disabled (history.enabled: false)")
	}

	a := newApp()
	defer a.Close()

	st, err := a.boltStore(cfg.History.Path)
	if err != nil {
		return err
	}
	records, err := st.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No answers recorded yet.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("[%s] %s\n", r.AnsweredAt.Local().Format("2006-01-02 15:04"), r.Question)
		fmt.Printf("  %s\n", preview(r.Answer, 160))
		if len(r.Sources) > 0 {
			fmt.Printf("  Sources: %s\n", strings.Join(r.Sources, ", "))
		}
		fmt.Println()
	}
	return nil
}
