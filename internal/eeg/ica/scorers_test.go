package ica

import (
	"math"
	"testing"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/testutil"
)

func TestZScores(t *testing.T) {
	got := zScores([]float64{1, 1, 1, 5})
	// the outlier sits (x-mean)/sd above the pack
	if got[3] <= got[0] {
		t.Errorf("outlier z = %g not above pack z = %g", got[3], got[0])
	}
	var sum float64
	for _, z := range got {
		sum += z
	}
	testutil.AssertInDelta(t, 0, sum, 1e-12)

	// degenerate population scores flat zero
	for _, z := range zScores([]float64{2, 2, 2}) {
		if z != 0 {
			t.Errorf("constant population yielded z = %g, want 0", z)
		}
	}
}

func TestFrontalIndices(t *testing.T) {
	channels := []eeg.Channel{
		{Name: "Fp1", Type: eeg.ChannelScalp},
		{Name: "C3", Type: eeg.ChannelScalp},
		{Name: "AF7", Type: eeg.ChannelScalp},
		{Name: "EOG1", Type: eeg.ChannelAuxiliary},
		{Name: "Pz", Type: eeg.ChannelScalp},
	}
	got := frontalIndices(channels)
	want := []int{0, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("frontalIndices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frontalIndices = %v, want %v", got, want)
		}
	}
}

func TestFrontalDominance(t *testing.T) {
	// uniform topography is neutral
	uniform := []float64{1, 1, 1, 1}
	testutil.AssertInDelta(t, 1, frontalDominance(uniform, []int{0}), 1e-12)

	// all weight on the single frontal channel maxes out at n/frontal
	focused := []float64{1, 0, 0, 0}
	testutil.AssertInDelta(t, 4, frontalDominance(focused, []int{0}), 1e-12)

	// no frontal channels leaves the factor neutral
	testutil.AssertInDelta(t, 1, frontalDominance(uniform, nil), 1e-12)
}

func scoringComponents(t *testing.T, sources [][]float64, mixing [][]float64) []Component {
	t.Helper()
	comps := make([]Component, len(sources))
	for i := range sources {
		comps[i] = Component{Index: i, Source: sources[i], Mixing: mixing[i]}
	}
	return comps
}

func TestMuscleScorerFlagsBroadbandComponent(t *testing.T) {
	fs := 250.0
	n := 2500
	sources := make([][]float64, 8)
	mixing := make([][]float64, 8)
	for i := range sources {
		sources[i] = testutil.Sine(n, fs, 5+float64(i), 1, 0)
		mixing[i] = []float64{1, 1, 1, 1}
	}
	// component 6 carries EMG-band energy
	emg := make([]float64, n)
	for _, f := range []float64{35, 45, 55, 65, 75} {
		tone := testutil.Sine(n, fs, f, 1, f)
		for j := range emg {
			emg[j] += tone[j]
		}
	}
	sources[6] = emg

	comps := scoringComponents(t, sources, mixing)
	ctx := newScoreContext(comps, fs, nil, 1)
	scores := MuscleScorer{}.Score(comps, ctx)

	if scores[6] < DefaultArtifactZThreshold {
		t.Errorf("EMG component z = %g, want >= %g", scores[6], DefaultArtifactZThreshold)
	}
	for i, z := range scores {
		if i != 6 && z >= DefaultArtifactZThreshold {
			t.Errorf("component %d z = %g crosses the threshold", i, z)
		}
	}
}

func TestOcularScorerFlagsFrontalSlowComponent(t *testing.T) {
	fs := 250.0
	n := 2500
	channels := []eeg.Channel{
		{Name: "Fp1"}, {Name: "Fp2"}, {Name: "C3"}, {Name: "C4"},
	}

	sources := make([][]float64, 8)
	mixing := make([][]float64, 8)
	for i := range sources {
		sources[i] = testutil.Sine(n, fs, 10+float64(i), 1, 0)
		mixing[i] = []float64{0.5, 0.5, 1, 1}
	}
	// component 2 is a slow frontal blink train
	blink := make([]float64, n)
	for _, centre := range []int{400, 1100, 1900} {
		bump := testutil.GaussianBump(n, centre, 25, 1)
		for j := range blink {
			blink[j] += bump[j]
		}
	}
	sources[2] = blink
	mixing[2] = []float64{1, 0.9, 0.1, 0.1}

	comps := scoringComponents(t, sources, mixing)
	ctx := newScoreContext(comps, fs, channels, 2)
	scores := OcularScorer{}.Score(comps, ctx)

	if scores[2] < DefaultArtifactZThreshold {
		t.Errorf("blink component z = %g, want >= %g", scores[2], DefaultArtifactZThreshold)
	}
}

func TestScorerThresholdOverride(t *testing.T) {
	if th := (OcularScorer{ZThreshold: 3.5}).Threshold(); th != 3.5 {
		t.Errorf("Threshold() = %g, want 3.5", th)
	}
	if th := (MuscleScorer{}).Threshold(); th != DefaultArtifactZThreshold {
		t.Errorf("Threshold() = %g, want default %g", th, DefaultArtifactZThreshold)
	}
}

func TestScoreContextPSDs(t *testing.T) {
	fs := 250.0
	comps := scoringComponents(t, [][]float64{
		testutil.Sine(2500, fs, 10, 1, 0),
		testutil.Sine(2500, fs, 40, 1, 0),
	}, [][]float64{{1}, {1}})

	ctx := newScoreContext(comps, fs, nil, 0)
	if len(ctx.PSDs) != 2 {
		t.Fatalf("got %d PSDs, want 2", len(ctx.PSDs))
	}
	if peak := ctx.PSDs[1].PeakFrequency(1); math.Abs(peak-40) > 1 {
		t.Errorf("component 1 peak = %g Hz, want 40", peak)
	}
}
