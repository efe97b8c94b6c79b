// Package testutil provides shared test utilities and fixtures.
//
// This package centralises synthetic-signal generation and numeric assertions
// used across the pipeline test files.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta checks that got is within delta of want.
func AssertInDelta(t *testing.T, want, got, delta float64) {
	t.Helper()
	if math.Abs(want-got) > delta {
		t.Errorf("value = %g, want %g (±%g)", got, want, delta)
	}
}

// Sine returns amp*sin(2*pi*freq*t + phase) sampled at sampleRate for n samples.
func Sine(n int, sampleRate, freq, amp, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate+phase)
	}
	return out
}

// GaussianBump returns a transient centred at sample centre with the given
// width (samples) and amplitude. Used as a synthetic eye-blink artifact.
func GaussianBump(n, centre int, width, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		d := float64(i - centre)
		out[i] = amp * math.Exp(-d*d/(2*width*width))
	}
	return out
}

// NewRecording builds a Recording from channel-major data with generated scalp
// channel names (ch0, ch1, ...) and no positions.
func NewRecording(data [][]float64, sampleRate float64) *eeg.Recording {
	channels := make([]eeg.Channel, len(data))
	for i := range channels {
		channels[i] = eeg.Channel{
			Name: fmt.Sprintf("ch%d", i),
			Unit: "uV",
			Type: eeg.ChannelScalp,
		}
	}
	rec := &eeg.Recording{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   channels,
		Flags:      make([]eeg.ChannelFlag, len(data)),
	}
	return rec
}

// Correlation returns the Pearson correlation of two equal-length signals.
func Correlation(a, b []float64) float64 {
	n := len(a)
	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
