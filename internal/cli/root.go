package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ragqa/config"
	"ragqa/internal/logging"
)

var (
	cfgFile    string
	cfg        *config.Config
	rootDir    string
	collection string
	timeout    time.Duration
	logLevel   string
	logger     *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragqa",
	Short: "Question answering over your documents, with an evaluation harness",
	Long: `ragqa ingests documents into a vector index, answers questions grounded in
the retrieved passages with source attribution, and scores the pipeline with
LLM-judged metrics.

Example usage:
  ragqa ingest ./papers https://example.org/guideline.pdf
  ragqa ask "What are the side effects of ACE inhibitors?"
  ragqa eval quick`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// A missing .env is fine; keys may come from the environment.
		_ = godotenv.Load()

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if collection != "" {
			cfg.VectorStore.Collection = collection
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		if err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragqa.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory for state files (default is current directory)")
	rootCmd.PersistentFlags().StringVarP(&collection, "collection", "c", "", "collection name (default from config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort the command after this long (0 disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default from config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// commandContext bounds a command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// statePath resolves a configured path against the working directory.
func statePath(p string) string {
	return config.Resolve(GetRootDir(), p)
}
