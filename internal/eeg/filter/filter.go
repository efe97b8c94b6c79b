// Package filter implements the frequency-domain cleaning stage: high-pass,
// low-pass and notch filtering of a Recording with zero-phase FIR filters.
package filter

import (
	"errors"
	"fmt"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

// ErrInvalidFilterSpec indicates cutoffs outside (0, Nyquist) or an inverted
// pass band. Raised before any computation proceeds.
var ErrInvalidFilterSpec = errors.New("invalid filter spec")

// ErrInsufficientSamples indicates the recording is shorter than the filter's
// settling length. The stage refuses to run rather than produce distorted
// edges.
var ErrInsufficientSamples = errors.New("insufficient samples for filter settling")

// Default cutoffs match the stock cleaning configuration.
const (
	// DefaultHighPassHz removes slow drift below 1 Hz.
	DefaultHighPassHz = 1.0
	// DefaultLowPassHz removes content above 40 Hz.
	DefaultLowPassHz = 40.0
	// DefaultNotchHz is the North American mains frequency.
	DefaultNotchHz = 60.0

	// defaultTransitionHz is the pass-to-stop transition bandwidth used to
	// size band kernels.
	defaultTransitionHz = 2.0
	// notchHalfWidthHz is the half-width of each band-stop notch.
	notchHalfWidthHz = 1.0
)

// Spec configures the filter stage. Nil cutoffs disable the corresponding
// band; an empty NotchHz applies no notch. Harmonics of each notch frequency
// are only suppressed when NotchHarmonics is set explicitly; they are never
// auto-included.
type Spec struct {
	HighPassHz     *float64  `json:"high_pass_hz,omitempty"`
	LowPassHz      *float64  `json:"low_pass_hz,omitempty"`
	NotchHz        []float64 `json:"notch_hz,omitempty"`
	NotchHarmonics bool      `json:"notch_harmonics,omitempty"`
}

// DefaultSpec returns the stock 1-40 Hz band-pass with a 60 Hz notch.
func DefaultSpec() Spec {
	hp, lp := DefaultHighPassHz, DefaultLowPassHz
	return Spec{HighPassHz: &hp, LowPassHz: &lp, NotchHz: []float64{DefaultNotchHz}}
}

// Validate checks the spec against the recording's Nyquist frequency.
func (s Spec) Validate(nyquist float64) error {
	check := func(name string, hz float64) error {
		if hz <= 0 || hz >= nyquist {
			return fmt.Errorf("%w: %s %g Hz outside (0, %g)", ErrInvalidFilterSpec, name, hz, nyquist)
		}
		return nil
	}
	if s.HighPassHz != nil {
		if err := check("high_pass_hz", *s.HighPassHz); err != nil {
			return err
		}
	}
	if s.LowPassHz != nil {
		if err := check("low_pass_hz", *s.LowPassHz); err != nil {
			return err
		}
	}
	if s.HighPassHz != nil && s.LowPassHz != nil && *s.HighPassHz >= *s.LowPassHz {
		return fmt.Errorf("%w: high_pass_hz %g must be below low_pass_hz %g",
			ErrInvalidFilterSpec, *s.HighPassHz, *s.LowPassHz)
	}
	for _, f := range s.NotchHz {
		if err := check("notch_hz", f); err != nil {
			return err
		}
	}
	return nil
}

// notchFrequencies expands the requested notch set, appending harmonics below
// Nyquist when enabled.
func (s Spec) notchFrequencies(nyquist float64) []float64 {
	out := append([]float64(nil), s.NotchHz...)
	if !s.NotchHarmonics {
		return out
	}
	for _, base := range s.NotchHz {
		for f := 2 * base; f < nyquist-notchHalfWidthHz; f += base {
			out = append(out, f)
		}
	}
	return out
}

// Apply runs the requested bands over every channel and returns a new
// Recording. Channel flags are copied through untouched; the stage never
// mutates them. The input recording is not modified.
func Apply(rec *eeg.Recording, spec Spec) (*eeg.Recording, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := spec.Validate(rec.Nyquist()); err != nil {
		return nil, err
	}

	kernels := buildKernels(spec, rec.SampleRate, rec.Nyquist())
	n := rec.NumSamples()
	for _, h := range kernels {
		if len(h) > n {
			return nil, fmt.Errorf("%w: %d samples, filter needs %d", ErrInsufficientSamples, n, len(h))
		}
	}

	out := rec.Clone()
	if len(kernels) == 0 {
		return out, nil
	}
	monitoring.Logf("filter: applying %d kernel(s) to %d channel(s)", len(kernels), out.NumChannels())
	for c := range out.Data {
		x := out.Data[c]
		for _, h := range kernels {
			x = convolveZeroPhase(x, h)
		}
		out.Data[c] = x
	}
	return out, nil
}

// buildKernels designs one kernel per requested band: a single band kernel for
// the pass band plus an independent band-stop per notch frequency.
func buildKernels(spec Spec, sampleRate, nyquist float64) [][]float64 {
	var kernels [][]float64
	taps := hammingTaps(transitionFor(spec), sampleRate)

	switch {
	case spec.HighPassHz != nil && spec.LowPassHz != nil:
		kernels = append(kernels, bandPassKernel(*spec.HighPassHz, *spec.LowPassHz, sampleRate, taps))
	case spec.HighPassHz != nil:
		kernels = append(kernels, highPassKernel(*spec.HighPassHz, sampleRate, taps))
	case spec.LowPassHz != nil:
		kernels = append(kernels, lowPassKernel(*spec.LowPassHz, sampleRate, taps))
	}

	for _, f := range spec.notchFrequencies(nyquist) {
		notchTaps := hammingTaps(notchHalfWidthHz, sampleRate)
		lo := f - notchHalfWidthHz
		hi := f + notchHalfWidthHz
		if hi >= nyquist {
			hi = nyquist * 0.999
		}
		kernels = append(kernels, bandStopKernel(lo, hi, sampleRate, notchTaps))
	}
	return kernels
}

// transitionFor picks the band-kernel transition width. Low high-pass cutoffs
// narrow the transition to match so the stop band still covers drift
// frequencies below the cutoff.
func transitionFor(spec Spec) float64 {
	t := defaultTransitionHz
	if spec.HighPassHz != nil {
		if q := *spec.HighPassHz; q < t {
			t = q
		}
	}
	if t <= 0 {
		t = defaultTransitionHz
	}
	return t
}
