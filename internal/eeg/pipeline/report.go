package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/channels"
	"github.com/neuro-analyst/neuroclean/internal/eeg/filter"
	"github.com/neuro-analyst/neuroclean/internal/eeg/ica"
	"github.com/neuro-analyst/neuroclean/internal/timeutil"
)

// clock supplies report timestamps; tests substitute a mock.
var clock timeutil.Clock = timeutil.RealClock{}

// CleaningReport records every decision the pipeline made for one run. It is
// built by the orchestrator and immutable after Clean returns; stages never
// touch it directly.
type CleaningReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	SampleRate  float64 `json:"sample_rate"`
	NumChannels int     `json:"num_channels"`
	NumSamples  int     `json:"num_samples"`

	Filter      FilterRecord       `json:"filter"`
	BadChannels []BadChannelRecord `json:"bad_channels"`
	Components  []ComponentRecord  `json:"components"`

	// Seed is the decomposition seed actually used, recorded so a run can
	// be reproduced exactly.
	Seed int64 `json:"seed"`
	// BadChannelPolicy records how flagged channels were handled.
	BadChannelPolicy string `json:"bad_channel_policy"`
}

// FilterRecord captures the filter stage's applied configuration.
type FilterRecord struct {
	HighPassHz     *float64  `json:"high_pass_hz,omitempty"`
	LowPassHz      *float64  `json:"low_pass_hz,omitempty"`
	NotchHz        []float64 `json:"notch_hz,omitempty"`
	NotchHarmonics bool      `json:"notch_harmonics"`
}

// BadChannelRecord captures one flagged channel and the statistics that
// condemned it.
type BadChannelRecord struct {
	Index          int     `json:"index"`
	Name           string  `json:"name"`
	DeviationScore float64 `json:"deviation_score"`
	RefCorrelation float64 `json:"ref_correlation"`
	Interpolated   bool    `json:"interpolated"`
}

// ComponentRecord captures one decomposition component's classification. The
// mixing weights are kept so a component's spatial topography can be rendered
// later, one weight per good channel in good-channel order.
type ComponentRecord struct {
	Index   int       `json:"index"`
	Label   string    `json:"label"`
	Kind    string    `json:"kind,omitempty"`
	Score   float64   `json:"score"`
	Removed bool      `json:"removed"`
	Mixing  []float64 `json:"mixing,omitempty"`
}

// NumRemoved returns the count of removed components.
func (r *CleaningReport) NumRemoved() int {
	n := 0
	for _, c := range r.Components {
		if c.Removed {
			n++
		}
	}
	return n
}

// reportBuilder accumulates stage decisions. Owned solely by the
// orchestrator; stages hand their results back as return values and the
// orchestrator appends them here.
type reportBuilder struct {
	report CleaningReport
}

func newReportBuilder(rec *eeg.Recording, seed int64, policy ica.BadChannelPolicy) *reportBuilder {
	return &reportBuilder{report: CleaningReport{
		RunID:            uuid.NewString(),
		StartedAt:        clock.Now().UTC(),
		SampleRate:       rec.SampleRate,
		NumChannels:      rec.NumChannels(),
		NumSamples:       rec.NumSamples(),
		Seed:             seed,
		BadChannelPolicy: string(policy),
	}}
}

func (b *reportBuilder) addFilter(spec filter.Spec) {
	b.report.Filter = FilterRecord{
		HighPassHz:     spec.HighPassHz,
		LowPassHz:      spec.LowPassHz,
		NotchHz:        append([]float64(nil), spec.NotchHz...),
		NotchHarmonics: spec.NotchHarmonics,
	}
}

func (b *reportBuilder) addBadChannels(rec *eeg.Recording, stats []channels.Statistics, bad []int, interpolated bool) {
	for _, c := range bad {
		b.report.BadChannels = append(b.report.BadChannels, BadChannelRecord{
			Index:          c,
			Name:           rec.Channels[c].Name,
			DeviationScore: stats[c].DeviationScore,
			RefCorrelation: stats[c].RefCorrelation,
			Interpolated:   interpolated,
		})
	}
}

func (b *reportBuilder) addComponents(comps []ica.Component) {
	for _, c := range comps {
		b.report.Components = append(b.report.Components, ComponentRecord{
			Index:   c.Index,
			Label:   string(c.Label),
			Kind:    c.Kind,
			Score:   c.Score,
			Removed: c.Label == ica.LabelArtifact,
			Mixing:  append([]float64(nil), c.Mixing...),
		})
	}
}

func (b *reportBuilder) finish() *CleaningReport {
	b.report.FinishedAt = clock.Now().UTC()
	out := b.report
	return &out
}
