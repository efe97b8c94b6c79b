package channels

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
	"github.com/neuro-analyst/neuroclean/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// cohortRecording builds numChannels channels sharing a common 10 Hz rhythm
// with slightly different gains, so inter-channel correlation is high and the
// variance spread is small but nonzero.
func cohortRecording(numChannels, n int, fs float64) *eeg.Recording {
	common := testutil.Sine(n, fs, 10, 10, 0)
	data := make([][]float64, numChannels)
	for c := range data {
		gain := 1 + 0.05*float64(c)
		ripple := testutil.Sine(n, fs, 17+float64(c), 0.5, float64(c))
		x := make([]float64, n)
		for i := range x {
			x[i] = gain*common[i] + ripple[i]
		}
		data[c] = x
	}
	return testutil.NewRecording(data, fs)
}

func TestEvaluateCleanCohort(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	stats, bad, err := Evaluate(rec, DetectorConfig{})
	testutil.AssertNoError(t, err)

	if len(bad) != 0 {
		t.Errorf("clean cohort flagged %v", bad)
	}
	if len(stats) != 8 {
		t.Fatalf("got %d statistics, want 8", len(stats))
	}
	for _, s := range stats {
		if s.RefCorrelation < 0.95 {
			t.Errorf("channel %d reference correlation = %g, want >= 0.95", s.Channel, s.RefCorrelation)
		}
	}
}

func TestEvaluateFlagsHighVarianceChannel(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	// replace one channel with an uncorrelated high-amplitude signal
	rec.Data[3] = testutil.Sine(2500, 250, 47, 500, 1.3)

	stats, bad, err := Evaluate(rec, DetectorConfig{})
	testutil.AssertNoError(t, err)

	if !reflect.DeepEqual(bad, []int{3}) {
		t.Fatalf("bad = %v, want [3]", bad)
	}
	if stats[3].DeviationScore <= DefaultDeviationThreshold && stats[3].RefCorrelation >= DefaultCorrelationFloor {
		t.Errorf("channel 3 stats (z=%g, corr=%g) do not explain the flag",
			stats[3].DeviationScore, stats[3].RefCorrelation)
	}
}

func TestEvaluateFlagsFlatChannel(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	rec.Data[5] = make([]float64, 2500)

	_, bad, err := Evaluate(rec, DetectorConfig{})
	testutil.AssertNoError(t, err)
	if !reflect.DeepEqual(bad, []int{5}) {
		t.Errorf("bad = %v, want [5]", bad)
	}
}

func TestEvaluateFlatChannelStatsEncodable(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	rec.Data[5] = make([]float64, 2500)

	stats, _, err := Evaluate(rec, DetectorConfig{})
	testutil.AssertNoError(t, err)

	// a dead channel has no defined reference correlation; it must come out
	// as 0, not NaN, so reports remain serialisable
	if stats[5].RefCorrelation != 0 {
		t.Errorf("flat channel correlation = %g, want 0", stats[5].RefCorrelation)
	}
	if _, err := json.Marshal(stats); err != nil {
		t.Errorf("statistics do not encode to JSON: %v", err)
	}
}

func TestEvaluateDoesNotMutate(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	rec.Data[3] = testutil.Sine(2500, 250, 47, 500, 1.3)

	_, _, err := Evaluate(rec, DetectorConfig{})
	testutil.AssertNoError(t, err)
	for c, f := range rec.Flags {
		if f != eeg.FlagGood {
			t.Errorf("Evaluate changed flag of channel %d to %v", c, f)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	rec.Data[1] = testutil.Sine(2500, 250, 47, 500, 1.3)
	rec.Data[6] = make([]float64, 2500)

	stats1, bad1, err := Evaluate(rec, DetectorConfig{Workers: 4})
	testutil.AssertNoError(t, err)
	stats2, bad2, err := Evaluate(rec, DetectorConfig{Workers: 1})
	testutil.AssertNoError(t, err)

	if !reflect.DeepEqual(bad1, bad2) {
		t.Errorf("bad sets differ across runs: %v vs %v", bad1, bad2)
	}
	if !reflect.DeepEqual(stats1, stats2) {
		t.Error("statistics differ across worker-pool sizes")
	}
}

func TestEvaluateInsufficientGoodChannels(t *testing.T) {
	common := testutil.Sine(2500, 250, 10, 10, 0)
	rec := testutil.NewRecording([][]float64{
		append([]float64(nil), common...),
		testutil.Sine(2500, 250, 47, 500, 1.3),
	}, 250)

	_, _, err := Evaluate(rec, DetectorConfig{DeviationThreshold: 0.5})
	if !errors.Is(err, ErrInsufficientGoodChannels) {
		t.Errorf("Evaluate() = %v, want ErrInsufficientGoodChannels", err)
	}
	for c, f := range rec.Flags {
		if f != eeg.FlagGood {
			t.Errorf("failed evaluation changed flag of channel %d", c)
		}
	}
}

func TestDetectSetsFlags(t *testing.T) {
	rec := cohortRecording(8, 2500, 250)
	rec.Data[2] = testutil.Sine(2500, 250, 47, 500, 1.3)

	bad, err := Detect(rec, DetectorConfig{})
	testutil.AssertNoError(t, err)
	if !reflect.DeepEqual(bad, []int{2}) {
		t.Fatalf("bad = %v, want [2]", bad)
	}
	if rec.Flags[2] != eeg.FlagBad {
		t.Error("Detect did not flag channel 2")
	}
}

func TestEvaluateSingleChannelBoundary(t *testing.T) {
	rec := testutil.NewRecording([][]float64{testutil.Sine(2500, 250, 10, 10, 0)}, 250)

	// one channel cannot satisfy the default two-channel minimum even when
	// nothing is flagged
	_, bad, err := Evaluate(rec, DetectorConfig{})
	if !errors.Is(err, ErrInsufficientGoodChannels) {
		t.Errorf("Evaluate() = (%v, %v), want ErrInsufficientGoodChannels", bad, err)
	}

	// with the minimum relaxed it passes untouched
	_, bad, err = Evaluate(rec, DetectorConfig{MinGoodChannels: 1})
	testutil.AssertNoError(t, err)
	if len(bad) != 0 {
		t.Errorf("single channel flagged %v", bad)
	}
}
