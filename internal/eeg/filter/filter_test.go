package filter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/spectral"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
	"github.com/neuro-analyst/neuroclean/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func floatPtr(v float64) *float64 { return &v }

func TestDefaultSpec(t *testing.T) {
	spec := DefaultSpec()
	if *spec.HighPassHz != 1.0 || *spec.LowPassHz != 40.0 {
		t.Errorf("default band = %g-%g Hz, want 1-40", *spec.HighPassHz, *spec.LowPassHz)
	}
	if len(spec.NotchHz) != 1 || spec.NotchHz[0] != 60.0 {
		t.Errorf("default notch = %v, want [60]", spec.NotchHz)
	}
	if spec.NotchHarmonics {
		t.Error("harmonics must be opt-in")
	}
}

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"inverted band", Spec{HighPassHz: floatPtr(40), LowPassHz: floatPtr(20)}},
		{"equal cutoffs", Spec{HighPassHz: floatPtr(20), LowPassHz: floatPtr(20)}},
		{"zero cutoff", Spec{HighPassHz: floatPtr(0)}},
		{"negative cutoff", Spec{LowPassHz: floatPtr(-5)}},
		{"cutoff at nyquist", Spec{LowPassHz: floatPtr(125)}},
		{"notch above nyquist", Spec{NotchHz: []float64{200}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.spec.Validate(125); !errors.Is(err, ErrInvalidFilterSpec) {
				t.Errorf("Validate() = %v, want ErrInvalidFilterSpec", err)
			}
		})
	}

	if err := (Spec{}).Validate(125); err != nil {
		t.Errorf("empty spec should be valid, got %v", err)
	}
	if err := DefaultSpec().Validate(125); err != nil {
		t.Errorf("default spec should be valid at 250 Hz, got %v", err)
	}
}

func TestNotchFrequencies(t *testing.T) {
	spec := Spec{NotchHz: []float64{50}}
	if got := spec.notchFrequencies(200); !reflect.DeepEqual(got, []float64{50}) {
		t.Errorf("without harmonics got %v, want [50]", got)
	}

	spec.NotchHarmonics = true
	got := spec.notchFrequencies(200)
	want := []float64{50, 100, 150}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("with harmonics got %v, want %v", got, want)
	}
}

// tenSecondRecording builds fs*10 samples of a 10 Hz tone with 60 Hz mains
// contamination and slow drift on every channel.
func tenSecondRecording(fs float64) *eeg.Recording {
	n := int(10 * fs)
	data := make([][]float64, 3)
	for c := range data {
		tone := testutil.Sine(n, fs, 10, 10, float64(c))
		mains := testutil.Sine(n, fs, 60, 5, 0)
		drift := testutil.Sine(n, fs, 0.2, 40, 0)
		x := make([]float64, n)
		for i := range x {
			x[i] = tone[i] + mains[i] + drift[i]
		}
		data[c] = x
	}
	return testutil.NewRecording(data, fs)
}

func TestApplyRemovesStopBands(t *testing.T) {
	fs := 250.0
	rec := tenSecondRecording(fs)
	out, err := Apply(rec, DefaultSpec())
	testutil.AssertNoError(t, err)

	// 5 s segments give 0.2 Hz resolution so the drift tone lands on a bin
	segLen := int(5 * fs)
	before := spectral.Welch(rec.Data[0], fs, segLen)
	after := spectral.Welch(out.Data[0], fs, segLen)

	// mains and drift suppressed by at least 20 dB
	if ratio := after.BandPower(58, 62) / before.BandPower(58, 62); ratio > 0.01 {
		t.Errorf("60 Hz mains power ratio = %g, want <= 0.01", ratio)
	}
	if ratio := after.BandPower(0.1, 0.5) / before.BandPower(0.1, 0.5); ratio > 0.01 {
		t.Errorf("drift power ratio = %g, want <= 0.01", ratio)
	}

	// the 10 Hz tone survives in the pass band
	if peak := after.PeakFrequency(2); peak < 9 || peak > 11 {
		t.Errorf("pass-band peak at %g Hz, want ~10", peak)
	}
	tone := testutil.Sine(rec.NumSamples(), fs, 10, 10, 0)
	if corr := testutil.Correlation(out.Data[0], tone); corr < 0.95 {
		t.Errorf("pass-band correlation with clean tone = %g, want >= 0.95", corr)
	}
}

func TestApplyZeroPhase(t *testing.T) {
	fs := 250.0
	n := int(10 * fs)
	tone := testutil.Sine(n, fs, 10, 1, 0)
	rec := testutil.NewRecording([][]float64{append([]float64(nil), tone...)}, fs)

	out, err := Apply(rec, Spec{LowPassHz: floatPtr(40)})
	testutil.AssertNoError(t, err)

	// a zero-phase filter leaves the pass-band tone aligned with the input
	if corr := testutil.Correlation(out.Data[0], tone); corr < 0.99 {
		t.Errorf("filtered tone correlation = %g, want >= 0.99", corr)
	}
}

func TestApplyIdempotentOnPassBand(t *testing.T) {
	fs := 250.0
	rec := tenSecondRecording(fs)
	spec := DefaultSpec()

	once, err := Apply(rec, spec)
	testutil.AssertNoError(t, err)
	twice, err := Apply(once, spec)
	testutil.AssertNoError(t, err)

	// already-filtered data passes through almost unchanged
	for c := range once.Data {
		if corr := testutil.Correlation(twice.Data[c], once.Data[c]); corr < 0.999 {
			t.Errorf("channel %d: re-filtered correlation = %g, want >= 0.999", c, corr)
		}
	}
}

func TestApplyInsufficientSamples(t *testing.T) {
	rec := testutil.NewRecording([][]float64{testutil.Sine(100, 250, 10, 1, 0)}, 250)
	_, err := Apply(rec, DefaultSpec())
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Apply() = %v, want ErrInsufficientSamples", err)
	}
}

func TestApplyInvalidSpec(t *testing.T) {
	rec := tenSecondRecording(250)
	_, err := Apply(rec, Spec{HighPassHz: floatPtr(40), LowPassHz: floatPtr(20)})
	if !errors.Is(err, ErrInvalidFilterSpec) {
		t.Errorf("Apply() = %v, want ErrInvalidFilterSpec", err)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	rec := tenSecondRecording(250)
	before := rec.Clone()

	_, err := Apply(rec, DefaultSpec())
	testutil.AssertNoError(t, err)

	if !reflect.DeepEqual(rec.Data, before.Data) {
		t.Error("Apply mutated the input recording")
	}
}

func TestApplyPreservesFlags(t *testing.T) {
	rec := tenSecondRecording(250)
	rec.Flags[1] = eeg.FlagBad

	out, err := Apply(rec, DefaultSpec())
	testutil.AssertNoError(t, err)

	if out.Flags[1] != eeg.FlagBad {
		t.Error("channel flags not carried through the filter stage")
	}
}

func TestApplyEmptySpecClones(t *testing.T) {
	rec := tenSecondRecording(250)
	out, err := Apply(rec, Spec{})
	testutil.AssertNoError(t, err)
	if out == rec {
		t.Error("Apply returned the input instead of a copy")
	}
	if !reflect.DeepEqual(out.Data, rec.Data) {
		t.Error("empty spec must leave data unchanged")
	}
}
