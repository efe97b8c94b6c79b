package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/edf"
	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/pipeline"
	"github.com/neuro-analyst/neuroclean/internal/plotting"
)

var (
	plotType   string
	plotOutput string
	plotStart  float64
	plotDur    float64
	plotMaxHz  float64
)

var plotCmd = &cobra.Command{
	Use:   "plot [input.edf]",
	Short: "Render a before/after comparison plot",
	Long: `Plot runs the pipeline over a recording without writing the cleaned
EDF and renders a PNG comparing raw and cleaned data: power spectral density
(--type psd), a stacked signal snippet (--type signal), or the decomposition
component topographies (--type components).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]

		tuning, err := loadTuning()
		if err != nil {
			return err
		}
		raw, err := edf.ReadRecording(input)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", input, err)
		}
		cleaned, report, err := pipeline.Clean(raw, tuning.Pipeline())
		if err != nil {
			return err
		}

		output := plotOutput
		if output == "" {
			base := strings.TrimSuffix(input, filepath.Ext(input))
			output = fmt.Sprintf("%s_%s.png", base, plotType)
		}

		switch plotType {
		case "psd":
			err = plotting.SavePSDComparison(output, raw, cleaned, plotMaxHz)
		case "signal":
			err = plotting.SaveSignalSnippet(output, raw, cleaned, plotStart, plotDur)
		case "components":
			names, mixings, removed := componentTopographies(raw, report)
			err = plotting.SaveComponentMixing(output, names, mixings, removed)
		default:
			return fmt.Errorf("unknown plot type %q (expected psd, signal or components)", plotType)
		}
		if err != nil {
			return err
		}

		fmt.Println(output)
		return nil
	},
}

// componentTopographies extracts per-component mixing weights from a run's
// report, labelled with the good-channel names the decomposition ran over.
func componentTopographies(raw *eeg.Recording, report *pipeline.CleaningReport) ([]string, [][]float64, []bool) {
	bad := make(map[int]bool, len(report.BadChannels))
	for _, b := range report.BadChannels {
		bad[b.Index] = true
	}
	names := make([]string, 0, raw.NumChannels())
	for c, ch := range raw.Channels {
		if !bad[c] {
			names = append(names, ch.Name)
		}
	}

	mixings := make([][]float64, len(report.Components))
	removed := make([]bool, len(report.Components))
	for i, comp := range report.Components {
		mixings[i] = comp.Mixing
		removed[i] = comp.Removed
	}
	return names, mixings, removed
}

func init() {
	plotCmd.Flags().StringVarP(&plotType, "type", "t", "psd", "plot type: psd, signal or components")
	plotCmd.Flags().StringVarP(&plotOutput, "output", "o", "", "output PNG path (default <input>_<type>.png)")
	plotCmd.Flags().Float64Var(&plotStart, "start", 0, "signal snippet start in seconds")
	plotCmd.Flags().Float64Var(&plotDur, "duration", 10, "signal snippet length in seconds")
	plotCmd.Flags().Float64Var(&plotMaxHz, "max-freq", 80, "PSD frequency axis limit in Hz")
}
