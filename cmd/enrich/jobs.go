package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-enrich-pipeline/internal/store"
	"go-enrich-pipeline/pkg/utils"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect recorded jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := st.ListJobs(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tROWS\tOK\tFAILED\tRETRIED\tCOLUMN\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
				utils.ShortID(j.ID), j.Status, j.Total, j.Succeeded, j.Failed, j.Retried,
				j.Spec.EntityColumn, j.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show [job-id]",
	Short: "Show a job and its recorded errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		j, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "job:       %s\n", j.ID)
		fmt.Fprintf(out, "status:    %s\n", j.Status)
		fmt.Fprintf(out, "template:  %s\n", j.Spec.QueryTemplate)
		fmt.Fprintf(out, "column:    %s\n", j.Spec.EntityColumn)
		fmt.Fprintf(out, "rows:      %d (%d succeeded, %d failed, %d retried)\n", j.Total, j.Succeeded, j.Failed, j.Retried)
		if j.Error != "" {
			fmt.Fprintf(out, "error:     %s\n", j.Error)
		}

		exports, err := st.ListExports(ctx, j.ID)
		if err != nil {
			return err
		}
		for _, e := range exports {
			state := "ok"
			if !e.Success {
				state = e.Error
			}
			fmt.Fprintf(out, "export:    %s %s (%s)\n", e.Type, e.Path, state)
		}

		errs, err := st.ListJobErrors(ctx, j.ID)
		if err != nil {
			return err
		}
		for _, e := range errs {
			row := "-"
			if e.Row != nil {
				row = fmt.Sprint(*e.Row)
			}
			fmt.Fprintf(out, "  [%s] row %s %s: %s\n", e.Severity, row, e.Stage, e.Message)
		}
		return nil
	},
}
