package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/channels"
	"github.com/neuro-analyst/neuroclean/internal/eeg/filter"
	"github.com/neuro-analyst/neuroclean/internal/eeg/ica"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
	"github.com/neuro-analyst/neuroclean/internal/testutil"
	"github.com/neuro-analyst/neuroclean/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func floatPtr(v float64) *float64 { return &v }

// sessionRecording builds a plausible 8-channel session: a shared alpha
// rhythm, per-channel rhythms at mutually unrelated frequencies, mains
// contamination, and a blink train on the frontal channels. Once the mains is
// notched out the montage is an invertible mix of eight independent sources;
// the outermost channels carry only the shared sources.
func sessionRecording(n int, fs float64) *eeg.Recording {
	names := []string{"Fp1", "Fp2", "F3", "F4", "C3", "C4", "P3", "P4"}
	blinkWeights := []float64{1.0, 0.9, 0.3, 0.3, 0.1, 0.1, 0.05, 0.05}
	rhythmHz := []float64{0, 6.7, 7.9, 12.3, 14.6, 17.3, 21.9, 0}

	alpha := testutil.Sine(n, fs, 10, 10, 0)
	mains := testutil.Sine(n, fs, 60, 4, 0)
	blink := make([]float64, n)
	for _, centre := range []int{n / 4, n / 2, 3 * n / 4} {
		bump := testutil.GaussianBump(n, centre, 25, 20)
		for j := range blink {
			blink[j] += bump[j]
		}
	}

	rec := eeg.New(make([]eeg.Channel, 8), n, fs)
	for c := 0; c < 8; c++ {
		rec.Channels[c] = eeg.Channel{Name: names[c], Unit: "uV", Type: eeg.ChannelScalp}
		gain := 1 + 0.05*float64(c)
		for j := 0; j < n; j++ {
			rec.Data[c][j] = gain*alpha[j] + mains[j] + blinkWeights[c]*blink[j]
		}
		if rhythmHz[c] > 0 {
			own := testutil.Sine(n, fs, rhythmHz[c], 3, float64(c))
			for j := 0; j < n; j++ {
				rec.Data[c][j] += own[j]
			}
		}
	}
	return rec
}

func TestCleanEndToEnd(t *testing.T) {
	fs := 250.0
	rec := sessionRecording(2500, fs)

	cleaned, report, err := Clean(rec, DefaultConfig())
	testutil.AssertNoError(t, err)

	// cleaning reshapes content, never the shape
	if cleaned.NumChannels() != rec.NumChannels() {
		t.Errorf("channel count changed: %d -> %d", rec.NumChannels(), cleaned.NumChannels())
	}
	if cleaned.NumSamples() != rec.NumSamples() {
		t.Errorf("sample count changed: %d -> %d", rec.NumSamples(), cleaned.NumSamples())
	}
	if cleaned.SampleRate != rec.SampleRate {
		t.Errorf("sampling rate changed: %g -> %g", rec.SampleRate, cleaned.SampleRate)
	}

	if report.RunID == "" {
		t.Error("report missing run ID")
	}
	if report.Seed != ica.DefaultSeed {
		t.Errorf("report seed = %d, want default %d", report.Seed, ica.DefaultSeed)
	}
	if report.Filter.HighPassHz == nil || *report.Filter.HighPassHz != filter.DefaultHighPassHz {
		t.Error("report missing applied high-pass cutoff")
	}
	if len(report.Components) != 8 {
		t.Errorf("report has %d components, want 8", len(report.Components))
	}
	for _, comp := range report.Components {
		if len(comp.Mixing) != 8 {
			t.Errorf("component %d has %d mixing weights, want 8", comp.Index, len(comp.Mixing))
		}
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("report timestamps out of order")
	}
	if report.BadChannelPolicy != string(ica.PolicyInterpolate) {
		t.Errorf("report policy = %q, want interpolate", report.BadChannelPolicy)
	}
}

func TestCleanDeterministic(t *testing.T) {
	rec := sessionRecording(2500, 250)

	out1, rep1, err := Clean(rec, DefaultConfig())
	testutil.AssertNoError(t, err)
	out2, rep2, err := Clean(rec, DefaultConfig())
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff(out1.Data, out2.Data); diff != "" {
		t.Errorf("cleaned data differs between identical runs:\n%s", diff)
	}
	if diff := cmp.Diff(rep1.Components, rep2.Components); diff != "" {
		t.Errorf("component records differ between identical runs:\n%s", diff)
	}
	if diff := cmp.Diff(rep1.BadChannels, rep2.BadChannels); diff != "" {
		t.Errorf("bad-channel records differ between identical runs:\n%s", diff)
	}
	if rep1.RunID == rep2.RunID {
		t.Error("run IDs must be unique per run")
	}
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	rec := sessionRecording(2500, 250)
	before := rec.Clone()

	_, _, err := Clean(rec, DefaultConfig())
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff(before.Data, rec.Data); diff != "" {
		t.Errorf("Clean mutated its input:\n%s", diff)
	}
	if diff := cmp.Diff(before.Flags, rec.Flags); diff != "" {
		t.Errorf("Clean mutated the input flags:\n%s", diff)
	}
}

func TestCleanFilterStageFailure(t *testing.T) {
	rec := sessionRecording(2500, 250)
	cfg := DefaultConfig()
	cfg.Filter = filter.Spec{HighPassHz: floatPtr(40), LowPassHz: floatPtr(20)}

	cleaned, report, err := Clean(rec, cfg)
	if !errors.Is(err, filter.ErrInvalidFilterSpec) {
		t.Errorf("Clean() = %v, want ErrInvalidFilterSpec", err)
	}
	if cleaned != nil || report != nil {
		t.Error("failed run must not return partial results")
	}
}

func TestCleanDetectorStageFailure(t *testing.T) {
	rec := sessionRecording(2500, 250)
	cfg := DefaultConfig()
	// an impossible floor condemns every channel
	cfg.Detector = channels.DetectorConfig{CorrelationFloor: 0.999999, MinGoodChannels: 8}

	cleaned, report, err := Clean(rec, cfg)
	if !errors.Is(err, channels.ErrInsufficientGoodChannels) {
		t.Errorf("Clean() = %v, want ErrInsufficientGoodChannels", err)
	}
	if cleaned != nil || report != nil {
		t.Error("failed run must not return partial results")
	}
}

func TestCleanMalformedRecording(t *testing.T) {
	rec := sessionRecording(100, 250)
	rec.SampleRate = -1

	_, _, err := Clean(rec, DefaultConfig())
	if !errors.Is(err, eeg.ErrMalformedRecording) {
		t.Errorf("Clean() = %v, want ErrMalformedRecording", err)
	}
}

func TestCleanReportTimestamps(t *testing.T) {
	started := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	mock := timeutil.NewMockClock(started)
	clock = mock
	defer func() { clock = timeutil.RealClock{} }()

	rec := sessionRecording(2500, 250)
	_, report, err := Clean(rec, DefaultConfig())
	testutil.AssertNoError(t, err)

	if !report.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", report.StartedAt, started)
	}
	if !report.FinishedAt.Equal(started) {
		t.Errorf("FinishedAt = %v, want %v", report.FinishedAt, started)
	}
}

func TestCleanRecordsBadChannels(t *testing.T) {
	rec := sessionRecording(2500, 250)
	// overwrite one channel with uncorrelated noise-like content
	rec.Data[6] = testutil.Sine(2500, 250, 33, 500, 0.7)

	cleaned, report, err := Clean(rec, DefaultConfig())
	testutil.AssertNoError(t, err)

	found := false
	for _, b := range report.BadChannels {
		if b.Index == 6 {
			found = true
			if b.Name != "P3" {
				t.Errorf("bad channel name = %q, want P3", b.Name)
			}
			if !b.Interpolated {
				t.Error("default policy should record interpolation")
			}
		}
	}
	if !found {
		t.Fatalf("channel 6 not in bad-channel records: %+v", report.BadChannels)
	}
	if cleaned.Flags[6] != eeg.FlagInterpolated {
		t.Errorf("cleaned flag = %v, want interpolated", cleaned.Flags[6])
	}
}
