package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/config"
	"github.com/neuro-analyst/neuroclean/internal/edf"
	"github.com/neuro-analyst/neuroclean/internal/eeg/pipeline"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
	"github.com/neuro-analyst/neuroclean/internal/report"
	"github.com/neuro-analyst/neuroclean/internal/runstore"
)

var (
	cleanOutput     string
	cleanReportDir  string
	cleanNoReport   bool
	cleanNoHistory  bool
	cleanHighPass   float64
	cleanLowPass    float64
	cleanNotch      []float64
	cleanHarmonics  bool
	cleanComponents int
	cleanSeed       int64
	cleanPolicy     string
	cleanWorkers    int
)

var cleanCmd = &cobra.Command{
	Use:   "clean [input.edf]",
	Short: "Clean a recording and write the result",
	Long: `Clean runs the full pipeline over an EDF recording and writes the
cleaned data next to the input (or to --output). Unless disabled, an HTML
report is generated and the run is saved to the history database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]

		tuning, err := loadTuning()
		if err != nil {
			return err
		}
		applyCleanFlags(cmd, tuning)

		raw, err := edf.ReadRecording(input)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", input, err)
		}
		monitoring.Logf("clean: loaded %s (%d channels, %.1f s at %g Hz)",
			input, raw.NumChannels(), raw.Duration().Seconds(), raw.SampleRate)

		cleaned, rep, err := pipeline.Clean(raw, tuning.Pipeline())
		if err != nil {
			return err
		}

		output := cleanOutput
		if output == "" {
			output = derivedOutputPath(input)
		}
		hdr, _ := edf.ReadHeader(input)
		meta := edf.Metadata{}
		if hdr != nil {
			meta = edf.Metadata{PatientID: hdr.PatientID, RecordingID: hdr.RecordingID, StartTime: hdr.StartTime}
		}
		if err := edf.WriteRecording(output, cleaned, meta); err != nil {
			return err
		}
		monitoring.Logf("clean: wrote %s", output)

		if !cleanNoReport {
			dir := cleanReportDir
			if dir == "" {
				dir = strings.TrimSuffix(output, filepath.Ext(output)) + "_report"
			}
			page, err := report.Generate(dir, rep, raw, cleaned)
			if err != nil {
				return err
			}
			if err := writeReportJSON(filepath.Join(dir, "report.json"), rep); err != nil {
				return err
			}
			monitoring.Logf("clean: report at %s", page)
		}

		if !cleanNoHistory {
			// the cleaned file is already on disk, so a history failure
			// only warns
			if err := saveRun(rep, input, output); err != nil {
				monitoring.Logf("clean: failed to save run history: %v", err)
			}
		}

		fmt.Printf("run %s: %d bad channel(s), %d of %d component(s) removed\n",
			rep.RunID, len(rep.BadChannels), rep.NumRemoved(), len(rep.Components))
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "output EDF path (default <input>_cleaned.edf)")
	cleanCmd.Flags().StringVar(&cleanReportDir, "report-dir", "", "report output directory (default <output>_report)")
	cleanCmd.Flags().BoolVar(&cleanNoReport, "no-report", false, "skip HTML report generation")
	cleanCmd.Flags().BoolVar(&cleanNoHistory, "no-history", false, "skip recording the run in the history database")
	cleanCmd.Flags().Float64Var(&cleanHighPass, "l-freq", 0, "high-pass cutoff in Hz")
	cleanCmd.Flags().Float64Var(&cleanLowPass, "h-freq", 0, "low-pass cutoff in Hz")
	cleanCmd.Flags().Float64SliceVar(&cleanNotch, "notch", nil, "notch frequencies in Hz")
	cleanCmd.Flags().BoolVar(&cleanHarmonics, "notch-harmonics", false, "also notch harmonics up to Nyquist")
	cleanCmd.Flags().IntVar(&cleanComponents, "ica-components", 0, "number of ICA components (default one per good channel)")
	cleanCmd.Flags().Int64Var(&cleanSeed, "seed", 0, "decomposition seed (0 selects the built-in default)")
	cleanCmd.Flags().StringVar(&cleanPolicy, "bad-channel-policy", "", "bad channel handling: interpolate or exclude")
	cleanCmd.Flags().IntVar(&cleanWorkers, "workers", 0, "worker pool size (default NumCPU)")
}

// applyCleanFlags overlays explicitly set flags onto the loaded tuning.
func applyCleanFlags(cmd *cobra.Command, tuning *config.TuningConfig) {
	if cmd.Flags().Changed("l-freq") {
		tuning.HighPassHz = &cleanHighPass
	}
	if cmd.Flags().Changed("h-freq") {
		tuning.LowPassHz = &cleanLowPass
	}
	if cmd.Flags().Changed("notch") {
		notch := append([]float64(nil), cleanNotch...)
		tuning.NotchHz = &notch
	}
	if cmd.Flags().Changed("notch-harmonics") {
		tuning.NotchHarmonics = &cleanHarmonics
	}
	if cmd.Flags().Changed("ica-components") {
		tuning.NumComponents = &cleanComponents
	}
	if cmd.Flags().Changed("seed") {
		tuning.Seed = &cleanSeed
	}
	if cmd.Flags().Changed("bad-channel-policy") {
		tuning.BadChannelPolicy = &cleanPolicy
	}
	if cmd.Flags().Changed("workers") {
		tuning.Workers = &cleanWorkers
	}
}

func derivedOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_cleaned.edf"
}

func writeReportJSON(path string, rep *pipeline.CleaningReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report JSON: %w", err)
	}
	return nil
}

func saveRun(rep *pipeline.CleaningReport, input, output string) error {
	store, err := runstore.Open(historyDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(rep, input, output)
}
