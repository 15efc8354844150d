package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-enrich-pipeline/internal/app"
	"go-enrich-pipeline/internal/config"
	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/pipeline"
)

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a table once and write the result",
	Long: `Runs a single enrichment job in the foreground.

Example:
  enrich run --input people.csv --column name \
    --template "{entity} official website and email" \
    --fields website,email --output enriched.csv

A YAML spec (--spec job.yaml) can hold the same settings; flags override it.
Ctrl-C stops the job and still writes the rows finished so far.`,
	Args: cobra.NoArgs,
	RunE: runJob,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.specPath, "spec", "", "YAML job spec")
	f.StringVarP(&runOpts.input, "input", "i", "", "input CSV or XLSX file")
	f.StringVar(&runOpts.sheetURL, "sheet-url", "", "input Google Sheet URL")
	f.StringVar(&runOpts.sheetName, "sheet-name", "", "sheet (tab) to read")
	f.StringVarP(&runOpts.column, "column", "c", "", "column holding the entity names")
	f.StringVarP(&runOpts.template, "template", "t", "", `search query template containing "{entity}"`)
	f.StringVarP(&runOpts.fields, "fields", "f", "", "comma-separated fields to extract")
	f.StringVarP(&runOpts.output, "output", "o", "", "output CSV or XLSX file")
	f.StringVar(&runOpts.outputSheet, "output-sheet", "", "Google Sheet URL to write the result to")
	f.IntVar(&runOpts.workers, "workers", 0, "rows processed in parallel (default batch.workers)")
	f.IntVar(&runOpts.maxRetries, "max-retries", 0, "retries per provider call (default batch.max_retries)")
	f.StringVar(&runOpts.rowDelay, "row-delay", "", "pause between rows, e.g. 2s")
	f.StringVar(&runOpts.transforms, "transform", "", "value transformations: lowercase, uppercase, title")
}

func runJob(cmd *cobra.Command, _ []string) error {
	var spec model.JobSpec
	if runOpts.specPath != "" {
		var err error
		if spec, err = loadSpec(runOpts.specPath); err != nil {
			return err
		}
	}
	runOpts.apply(&spec, cmd.Flags().Changed)
	if err := pipeline.ValidateSpec(spec, nil); err != nil {
		return err
	}
	if err := cfg.Validate(config.Needs{Search: true, Extract: true, Sheets: pipeline.UsesSheets(spec, nil)}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	res, err := a.Manager.Run(ctx, spec, nil)
	if res != nil {
		printResult(cmd, res)
	}
	return err
}

func printResult(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	r := res.Report
	fmt.Fprintf(out, "job %s: %d rows, %d succeeded, %d failed, %d retried", res.JobID, r.Total, r.Succeeded, r.Failed, r.Retried)
	if r.Cancelled {
		fmt.Fprintf(out, " (cancelled after %d rows)", r.Len())
	}
	fmt.Fprintln(out)
	for _, e := range res.Exports {
		if e.Success {
			fmt.Fprintf(out, "  wrote %d rows to %s\n", e.RecordCount, e.Path)
		} else {
			fmt.Fprintf(out, "  failed to write %s: %s\n", e.Path, e.Error)
		}
	}
	for _, f := range r.Failures() {
		fmt.Fprintf(out, "  row %d (%s): %s\n", f.Row, f.Reason, f.Message)
	}
}
