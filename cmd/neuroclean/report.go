package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/edf"
	"github.com/neuro-analyst/neuroclean/internal/report"
	"github.com/neuro-analyst/neuroclean/internal/runstore"
	"github.com/neuro-analyst/neuroclean/internal/security"
)

var reportDir string

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Re-render the HTML report for a stored run",
	Long: `Report rebuilds the HTML report bundle for a run from the history
database. The run's input and cleaned EDF files must still exist at their
recorded paths; the comparison charts are regenerated from them.`,
	Args: cobra.ExactArgs(1),
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
		raw, err := edf.ReadRecording(run.InputPath)
		if err != nil {
			return fmt.Errorf("failed to read recorded input %s: %w", run.InputPath, err)
		}
		cleaned, err := edf.ReadRecording(run.OutputPath)
		if err != nil {
			return fmt.Errorf("failed to read recorded output %s: %w", run.OutputPath, err)
		}

		dir := reportDir
		if dir == "" {
			dir = "report_" + security.SanitizeFilename(run.RunID)
		}
		page, err := report.Generate(dir, run.Report, raw, cleaned)
		if err != nil {
			return err
		}
		fmt.Println(page)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportDir, "dir", "d", "", "report output directory (default report_<run-id>)")
}
