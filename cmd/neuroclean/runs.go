package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/runstore"
	"github.com/neuro-analyst/neuroclean/internal/security"
)

var (
	runsLimit     int
	runsExportDir string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect cleaning run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(historyDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTARTED\tINPUT\tCHANNELS\tBAD\tREMOVED\tSEED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.InputPath,
				r.NumChannels, r.BadChannels, r.RemovedComponents, r.Seed)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print one run's full report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(historyDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(run.Report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Write one run's report to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(historyDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(run.Report, "", "  ")
		if err != nil {
			return err
		}

		out := filepath.Join(runsExportDir, "run_"+security.SanitizeFilename(run.RunID)+".json")
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("wrote %s\n", out)
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	runsExportCmd.Flags().StringVarP(&runsExportDir, "dir", "d", ".", "directory for the exported report")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
}
