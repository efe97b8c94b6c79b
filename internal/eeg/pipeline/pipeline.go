// Package pipeline sequences the cleaning stages over one recording and
// assembles the CleaningReport.
//
// This package is the composition root: it imports the stage packages
// (filter, channels, ica) but none of them import pipeline.
package pipeline

import (
	"fmt"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/channels"
	"github.com/neuro-analyst/neuroclean/internal/eeg/filter"
	"github.com/neuro-analyst/neuroclean/internal/eeg/ica"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

// Config carries the per-stage tuning for one run.
type Config struct {
	Filter    filter.Spec
	Detector  channels.DetectorConfig
	Separator ica.Config
}

// DefaultConfig returns the stock configuration: 1-40 Hz band-pass, 60 Hz
// notch, default detection thresholds, interpolation of bad channels.
func DefaultConfig() Config {
	return Config{Filter: filter.DefaultSpec()}
}

// Clean runs filter, bad-channel detection and artifact separation in fixed
// order and returns the cleaned recording plus the cleaning report. Any stage
// failure aborts the run: the originating error is wrapped with the stage
// name, remains matchable with errors.Is, and no partial recording is
// returned. The input recording is never modified.
func Clean(rec *eeg.Recording, cfg Config) (*eeg.Recording, *CleaningReport, error) {
	if err := rec.Validate(); err != nil {
		return nil, nil, err
	}
	sep := ica.NewSeparator(cfg.Separator)

	builder := newReportBuilder(rec, effectiveSeed(cfg.Separator), effectivePolicy(cfg.Separator))
	monitoring.Logf("pipeline: run %s on %d channel(s), %d sample(s) at %g Hz",
		builder.report.RunID, rec.NumChannels(), rec.NumSamples(), rec.SampleRate)

	filtered, err := filter.Apply(rec, cfg.Filter)
	if err != nil {
		return nil, nil, fmt.Errorf("filter stage: %w", err)
	}
	builder.addFilter(cfg.Filter)

	stats, bad, err := channels.Evaluate(filtered, cfg.Detector)
	if err != nil {
		return nil, nil, fmt.Errorf("bad-channel stage: %w", err)
	}
	for _, c := range bad {
		filtered.Flags[c] = eeg.FlagBad
	}
	interpolating := effectivePolicy(cfg.Separator) == ica.PolicyInterpolate
	builder.addBadChannels(filtered, stats, bad, interpolating)

	cleaned, comps, err := sep.Remove(filtered, filtered.GoodChannels())
	if err != nil {
		return nil, nil, fmt.Errorf("artifact stage: %w", err)
	}
	builder.addComponents(comps)

	report := builder.finish()
	monitoring.Logf("pipeline: run %s finished, %d bad channel(s), %d component(s) removed",
		report.RunID, len(report.BadChannels), report.NumRemoved())
	return cleaned, report, nil
}

func effectiveSeed(cfg ica.Config) int64 {
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	return ica.DefaultSeed
}

func effectivePolicy(cfg ica.Config) ica.BadChannelPolicy {
	if cfg.BadChannelPolicy != "" {
		return cfg.BadChannelPolicy
	}
	return ica.PolicyInterpolate
}
