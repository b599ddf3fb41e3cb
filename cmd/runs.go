package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tDURATION\tHALTED AT")
		for _, r := range runs {
			duration := "-"
			if r.CompletedAt != nil {
				duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			halted := "-"
			if r.HaltedStage != "" {
				halted = r.HaltedStage + "/" + r.HaltedCheck
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.RunID, r.Status, r.StartedAt.Format(time.RFC3339), duration, halted)
		}
		tw.Flush() //nolint:errcheck
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
