package ica

import (
	"fmt"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/channels"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

// State tracks the separator through one run. Transitions are internal only;
// a run either reaches StateDone or fails in place.
type State int

const (
	// StateIdle is the state before Remove is called.
	StateIdle State = iota
	// StateDecomposing covers the FastICA fit.
	StateDecomposing
	// StateClassifying covers component scoring.
	StateClassifying
	// StateReconstructing covers the inverse transform and bad-channel
	// handling.
	StateReconstructing
	// StateDone is the terminal success state.
	StateDone
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecomposing:
		return "decomposing"
	case StateClassifying:
		return "classifying"
	case StateReconstructing:
		return "reconstructing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BadChannelPolicy selects how flagged-bad channels appear in the cleaned
// recording. The choice is explicit configuration, never inferred.
type BadChannelPolicy string

const (
	// PolicyInterpolate rebuilds bad channels from good-channel data.
	PolicyInterpolate BadChannelPolicy = "interpolate"
	// PolicyExclude leaves bad channels flagged with their original data.
	PolicyExclude BadChannelPolicy = "exclude"
)

// Decomposition iteration defaults.
const (
	// DefaultMaxIterations bounds the FastICA fit; exhausting it raises
	// ErrNonConvergence.
	DefaultMaxIterations = 200
	// DefaultTolerance is the per-iteration rotation below which the fit
	// counts as converged.
	DefaultTolerance = 1e-4
	// DefaultSeed drives the orthonormal initialisation when the caller
	// does not choose one.
	DefaultSeed = 97
)

// Config tunes the artifact separator. The seed is an explicit input: the
// separator never touches process-wide random state.
type Config struct {
	// NumComponents caps the decomposition size; <= 0 or more than the
	// good-channel count means one component per good channel.
	NumComponents int
	// Seed drives the decomposition initialisation. Zero is a sentinel
	// selecting DefaultSeed, so seed 0 itself cannot be pinned; the seed in
	// effect is recorded in the run's report.
	Seed int64
	// MaxIterations bounds the fit.
	MaxIterations int
	// Tolerance is the convergence criterion.
	Tolerance float64
	// Scorers classify components; nil selects DefaultScorers.
	Scorers []Scorer
	// BadChannelPolicy selects interpolation or exclusion; empty defaults
	// to PolicyInterpolate.
	BadChannelPolicy BadChannelPolicy
	// Workers bounds the scoring worker pool; <= 0 means NumCPU.
	Workers int
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Scorers == nil {
		c.Scorers = DefaultScorers()
	}
	if c.BadChannelPolicy == "" {
		c.BadChannelPolicy = PolicyInterpolate
	}
	return c
}

// Separator runs the decompose-classify-reconstruct stage. A Separator is
// single-use per recording; independent recordings get independent
// separators.
type Separator struct {
	cfg   Config
	state State
}

// NewSeparator returns a separator with defaults filled in.
func NewSeparator(cfg Config) *Separator {
	return &Separator{cfg: cfg.withDefaults()}
}

// State reports the current stage of the run.
func (s *Separator) State() State { return s.state }

// Remove decomposes the good channels of rec, removes components classified
// as artifact, and returns the cleaned recording plus the classified
// components. rec is not modified. Bad channels are interpolated or left
// excluded per the configured policy.
func (s *Separator) Remove(rec *eeg.Recording, good []int) (*eeg.Recording, []Component, error) {
	if err := rec.Validate(); err != nil {
		return nil, nil, err
	}
	if len(good) == 0 {
		return nil, nil, fmt.Errorf("%w: separator needs at least one good channel",
			channels.ErrInsufficientGoodChannels)
	}
	for _, g := range good {
		if g < 0 || g >= rec.NumChannels() {
			return nil, nil, fmt.Errorf("%w: good channel index %d out of range",
				eeg.ErrMalformedRecording, g)
		}
	}

	s.state = StateDecomposing
	monitoring.Logf("ica: %s %d good channel(s), seed %d", s.state, len(good), s.cfg.Seed)

	data := make([][]float64, len(good))
	goodChannels := make([]eeg.Channel, len(good))
	for i, g := range good {
		data[i] = rec.Data[g]
		goodChannels[i] = rec.Channels[g]
	}

	dec, err := fastICA(data, s.cfg.NumComponents, s.cfg.Seed, s.cfg.MaxIterations, s.cfg.Tolerance)
	if err != nil {
		return nil, nil, err
	}

	s.state = StateClassifying
	comps := s.componentsFrom(dec)
	s.classify(comps, rec.SampleRate, goodChannels)

	s.state = StateReconstructing
	out, err := s.reconstruct(rec, good, dec, comps)
	if err != nil {
		return nil, nil, err
	}

	s.state = StateDone
	removed := 0
	for _, c := range comps {
		if c.Label == LabelArtifact {
			removed++
		}
	}
	monitoring.Logf("ica: done, removed %d of %d component(s)", removed, len(comps))
	return out, comps, nil
}

// componentsFrom snapshots the decomposition into report-friendly components.
func (s *Separator) componentsFrom(dec *decomposition) []Component {
	k, t := dec.sources.Dims()
	n, _ := dec.mixing.Dims()
	comps := make([]Component, k)
	for i := 0; i < k; i++ {
		src := make([]float64, t)
		for j := 0; j < t; j++ {
			src[j] = dec.sources.At(i, j)
		}
		mix := make([]float64, n)
		for r := 0; r < n; r++ {
			mix[r] = dec.mixing.At(r, i)
		}
		comps[i] = Component{Index: i, Source: src, Mixing: mix, Label: LabelUnknown}
	}
	return comps
}

// classify runs every scorer over the components. A component is an artifact
// when any scorer's score meets that scorer's threshold; its kind comes from
// the highest-scoring such scorer. Components no scorer flags are neural.
// Every component keeps its highest score across scorers, negative or not, so
// retained components still carry the rationale for keeping them.
func (s *Separator) classify(comps []Component, sampleRate float64, goodChannels []eeg.Channel) {
	ctx := newScoreContext(comps, sampleRate, goodChannels, s.cfg.Workers)
	bestFlagged := make([]float64, len(comps))
	for si, scorer := range s.cfg.Scorers {
		scores := scorer.Score(comps, ctx)
		for i := range comps {
			if si == 0 || scores[i] > comps[i].Score {
				comps[i].Score = scores[i]
			}
			if scores[i] >= scorer.Threshold() {
				if comps[i].Label != LabelArtifact || scores[i] > bestFlagged[i] {
					comps[i].Kind = scorer.Kind()
					bestFlagged[i] = scores[i]
				}
				comps[i].Label = LabelArtifact
			}
		}
	}
	for i := range comps {
		if comps[i].Label != LabelArtifact {
			comps[i].Label = LabelNeural
		}
	}
}

// reconstruct applies the inverse transform with artifact sources zeroed,
// writes the result over the good channels of a clone, and applies the
// bad-channel policy.
func (s *Separator) reconstruct(rec *eeg.Recording, good []int, dec *decomposition, comps []Component) (*eeg.Recording, error) {
	out := rec.Clone()
	t := rec.NumSamples()

	for row, g := range good {
		dst := out.Data[g]
		for j := 0; j < t; j++ {
			acc := dec.means[row]
			for c := range comps {
				if comps[c].Label == LabelArtifact {
					continue
				}
				acc += dec.mixing.At(row, c) * dec.sources.At(c, j)
			}
			dst[j] = acc
		}
	}

	if s.cfg.BadChannelPolicy == PolicyInterpolate {
		if _, err := channels.Interpolate(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
