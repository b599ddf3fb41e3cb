package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/pipeline"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full pipeline run",
	Long:  "Stages every source, updates dimensions, builds facts, rebuilds marts. The quality gate runs after each stage and halts the run on error-severity failures.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := pipeline.New(cfg, st)
		if err != nil {
			return err
		}

		report, runErr := p.Run(ctx)
		if report != nil {
			if runJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(report) //nolint:errcheck
			} else {
				formatReport(os.Stdout, report)
			}
		}
		return runErr
	},
}

func formatReport(w *os.File, r *model.RunReport) {
	fmt.Fprintf(w, "Run %s: %s\n", r.RunID, r.Status)
	if r.HaltedStage != "" {
		fmt.Fprintf(w, "Halted at %s by %s\n", r.HaltedStage, r.HaltedCheck)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tWRITTEN\tDROPPED\tANOMALIES\tWARNINGS")
	for _, s := range r.Stages {
		var warns int
		for _, c := range s.Checks {
			if c.Warned() {
				warns++
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Stage, s.RowsWritten, s.RowsDropped, s.Anomalies, warns)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(runCmd)
}
