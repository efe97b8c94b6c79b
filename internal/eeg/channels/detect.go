package channels

import (
	"errors"
	"fmt"
	"sort"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

// ErrInsufficientGoodChannels indicates that exclusion would leave too few
// channels for a usable reference set. The detector fails instead of
// proceeding, leaving channel flags untouched.
var ErrInsufficientGoodChannels = errors.New("insufficient good channels")

// Detection thresholds. The deviation multiplier follows the usual robust
// z-score convention; the correlation floor matches the stock configuration.
const (
	// DefaultDeviationThreshold flags channels whose log-variance robust
	// z-score exceeds this multiple of the population MAD.
	DefaultDeviationThreshold = 5.0
	// DefaultCorrelationFloor flags channels whose correlation with the
	// median reference drops below this value.
	DefaultCorrelationFloor = 0.8
	// DefaultMinGoodChannels is the smallest reference set the pipeline
	// will proceed with.
	DefaultMinGoodChannels = 2
)

// DetectorConfig tunes the bad-channel detector. Zero values select the
// documented defaults.
type DetectorConfig struct {
	DeviationThreshold float64
	CorrelationFloor   float64
	MinGoodChannels    int
	// Workers bounds the statistics worker pool; <= 0 means NumCPU.
	Workers int
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.DeviationThreshold <= 0 {
		c.DeviationThreshold = DefaultDeviationThreshold
	}
	if c.CorrelationFloor <= 0 {
		c.CorrelationFloor = DefaultCorrelationFloor
	}
	if c.MinGoodChannels <= 0 {
		c.MinGoodChannels = DefaultMinGoodChannels
	}
	return c
}

// Evaluate computes statistics and the set of channels that fail the
// thresholds, without mutating the recording. The returned indices are
// ascending; callers must not rely on any other ordering. Deterministic:
// identical input and thresholds always produce the identical set.
func Evaluate(rec *eeg.Recording, cfg DetectorConfig) ([]Statistics, []int, error) {
	if err := rec.Validate(); err != nil {
		return nil, nil, err
	}
	cfg = cfg.withDefaults()

	stats := Compute(rec, cfg.Workers)
	var bad []int
	for _, s := range stats {
		if s.DeviationScore > cfg.DeviationThreshold || failsCorrelation(s, len(stats), cfg) {
			bad = append(bad, s.Channel)
		}
	}
	sort.Ints(bad)

	if remaining := rec.NumChannels() - len(bad); remaining < cfg.MinGoodChannels {
		return stats, nil, fmt.Errorf("%w: %d of %d channels remain, need %d",
			ErrInsufficientGoodChannels, remaining, rec.NumChannels(), cfg.MinGoodChannels)
	}
	return stats, bad, nil
}

// failsCorrelation applies the correlation floor. With fewer than three
// channels the median reference degenerates to the channels themselves, so
// the criterion is skipped.
func failsCorrelation(s Statistics, numChannels int, cfg DetectorConfig) bool {
	if numChannels < 3 {
		return false
	}
	return s.RefCorrelation < cfg.CorrelationFloor
}

// Detect flags bad channels on the recording and returns their indices. Data
// is never removed; flagged channels stay in the recording for provenance and
// later interpolation.
func Detect(rec *eeg.Recording, cfg DetectorConfig) ([]int, error) {
	_, bad, err := Evaluate(rec, cfg)
	if err != nil {
		return nil, err
	}
	for _, c := range bad {
		rec.Flags[c] = eeg.FlagBad
	}
	if len(bad) > 0 {
		monitoring.Logf("channels: flagged %d bad channel(s): %v", len(bad), bad)
	}
	return bad, nil
}
