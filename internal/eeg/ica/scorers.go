package ica

import (
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/spectral"
)

// ScoreContext carries everything a scorer may need beyond the component
// itself. PSDs are precomputed once for all components.
type ScoreContext struct {
	SampleRate float64
	// Channels describes the good channels, aligned with Component.Mixing.
	Channels []eeg.Channel
	// PSDs[i] is the Welch estimate for component i's source.
	PSDs []spectral.PSD
}

// newScoreContext precomputes per-component PSDs in a bounded worker pool.
// Each worker writes only its own index, keeping results independent of
// worker count.
func newScoreContext(comps []Component, sampleRate float64, channels []eeg.Channel, workers int) *ScoreContext {
	ctx := &ScoreContext{
		SampleRate: sampleRate,
		Channels:   channels,
		PSDs:       make([]spectral.PSD, len(comps)),
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(comps) {
		workers = len(comps)
	}
	segLen := int(sampleRate) // one-second segments

	var wg sync.WaitGroup
	work := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				ctx.PSDs[i] = spectral.Welch(comps[i].Source, sampleRate, segLen)
			}
		}()
	}
	for i := range comps {
		work <- i
	}
	close(work)
	wg.Wait()
	return ctx
}

// Scorer scores components against one artifact heuristic. Scores are
// z-scores across the component population; a component whose score meets the
// scorer's threshold is labelled artifact. Implementations must be
// deterministic and must not mutate the components.
type Scorer interface {
	// Name identifies the scorer in reports.
	Name() string
	// Kind is the artifact family assigned to components this scorer flags.
	Kind() string
	// Threshold is the score at or above which a component is an artifact.
	Threshold() float64
	// Score returns one score per component.
	Score(comps []Component, ctx *ScoreContext) []float64
}

// DefaultScorers returns the stock ocular + muscle heuristic pair.
func DefaultScorers() []Scorer {
	return []Scorer{
		OcularScorer{ZThreshold: DefaultArtifactZThreshold},
		MuscleScorer{ZThreshold: DefaultArtifactZThreshold},
	}
}

// DefaultArtifactZThreshold is the stock artifact-likelihood cutoff in
// z-score units.
const DefaultArtifactZThreshold = 2.0

// Ocular heuristic band: blink and saccade energy sits below 4 Hz.
const ocularBandHiHz = 4.0

// OcularScorer detects eye-movement components: energy concentrated below
// 4 Hz with a topography dominated by frontal electrodes.
type OcularScorer struct {
	// ZThreshold overrides the default artifact cutoff when positive.
	ZThreshold float64
}

// Name implements Scorer.
func (OcularScorer) Name() string { return "ocular" }

// Kind implements Scorer.
func (OcularScorer) Kind() string { return "ocular" }

// Threshold implements Scorer.
func (s OcularScorer) Threshold() float64 {
	if s.ZThreshold > 0 {
		return s.ZThreshold
	}
	return DefaultArtifactZThreshold
}

// Score implements Scorer. The raw metric is the low-frequency power fraction
// weighted by frontal topography dominance, z-scored across components.
func (s OcularScorer) Score(comps []Component, ctx *ScoreContext) []float64 {
	frontal := frontalIndices(ctx.Channels)
	raw := make([]float64, len(comps))
	for i, c := range comps {
		psd := ctx.PSDs[i]
		total := psd.TotalPower()
		if total <= 0 {
			continue
		}
		lowFrac := psd.BandPower(0, ocularBandHiHz) / total
		raw[i] = lowFrac * frontalDominance(c.Mixing, frontal)
	}
	return zScores(raw)
}

// Muscle heuristic band: EMG contamination shows as broadband power between
// 30 and 100 Hz.
const (
	muscleBandLoHz = 30.0
	muscleBandHiHz = 100.0
)

// MuscleScorer detects EMG components by their mean spectral power in the
// 30-100 Hz band, z-scored across components.
type MuscleScorer struct {
	// ZThreshold overrides the default artifact cutoff when positive.
	ZThreshold float64
}

// Name implements Scorer.
func (MuscleScorer) Name() string { return "muscle" }

// Kind implements Scorer.
func (MuscleScorer) Kind() string { return "muscle" }

// Threshold implements Scorer.
func (s MuscleScorer) Threshold() float64 {
	if s.ZThreshold > 0 {
		return s.ZThreshold
	}
	return DefaultArtifactZThreshold
}

// Score implements Scorer.
func (s MuscleScorer) Score(comps []Component, ctx *ScoreContext) []float64 {
	hi := muscleBandHiHz
	if nyquist := ctx.SampleRate / 2; hi > nyquist {
		hi = nyquist
	}
	raw := make([]float64, len(comps))
	for i := range comps {
		raw[i] = ctx.PSDs[i].BandPower(muscleBandLoHz, hi)
	}
	return zScores(raw)
}

// frontalIndices returns mixing indices of channels whose names mark frontal
// or periocular electrodes in the 10-20 convention.
func frontalIndices(channels []eeg.Channel) []int {
	var out []int
	for i, ch := range channels {
		name := strings.ToUpper(ch.Name)
		if strings.HasPrefix(name, "FP") || strings.HasPrefix(name, "AF") ||
			strings.HasPrefix(name, "EOG") || ch.Type == eeg.ChannelAuxiliary {
			out = append(out, i)
		}
	}
	return out
}

// frontalDominance is the fraction of absolute mixing weight carried by
// frontal channels. Without any frontal channels the factor is neutral, so
// the spectral criterion decides alone.
func frontalDominance(mixing []float64, frontal []int) float64 {
	if len(frontal) == 0 {
		return 1
	}
	var total, front float64
	for _, w := range mixing {
		total += math.Abs(w)
	}
	if total == 0 {
		return 0
	}
	for _, i := range frontal {
		front += math.Abs(mixing[i])
	}
	// rescale so uniform topographies score 1, frontal-only topographies
	// score len(mixing)/len(frontal)
	expected := float64(len(frontal)) / float64(len(mixing))
	return (front / total) / expected
}

// zScores converts raw metrics to (x - mean) / stddev. Plain moments rather
// than median/MAD: with a handful of components MAD collapses to zero too
// easily.
func zScores(raw []float64) []float64 {
	n := float64(len(raw))
	if n == 0 {
		return raw
	}
	var mean float64
	for _, v := range raw {
		mean += v
	}
	mean /= n
	var variance float64
	for _, v := range raw {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	out := make([]float64, len(raw))
	if variance == 0 {
		return out
	}
	sd := math.Sqrt(variance)
	for i, v := range raw {
		out[i] = (v - mean) / sd
	}
	return out
}
