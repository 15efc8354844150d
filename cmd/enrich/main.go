package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-enrich-pipeline/internal/config"
	"go-enrich-pipeline/internal/logging"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich spreadsheet rows with web search and LLM extraction",
	Long: `enrich reads a CSV, XLSX or Google Sheets table, searches the web for the
entity in each row, asks an LLM to extract the requested fields from the
results and writes the enriched table back out.

Settings come from config.yaml and ENRICH_* environment variables; provider
keys are also read from SERPAPI_KEY, ANTHROPIC_API_KEY and GEMINI_API_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, serveCmd, jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
