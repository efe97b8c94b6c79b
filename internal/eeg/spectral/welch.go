// Package spectral estimates power spectral densities with Welch's method.
// The estimator is shared by the muscle-artifact scorer, the plotting
// collaborator and the HTML report.
package spectral

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PSD is a one-sided power spectral density estimate. Power[i] is the density
// at Freqs[i] in (input unit)^2/Hz.
type PSD struct {
	Freqs []float64
	Power []float64
}

// Welch estimates the PSD of x using Hann-windowed segments of segLen samples
// with 50% overlap. segLen is clamped to len(x); one second of samples is the
// conventional choice.
func Welch(x []float64, sampleRate float64, segLen int) PSD {
	if segLen <= 0 || segLen > len(x) {
		segLen = len(x)
	}
	if segLen < 2 {
		return PSD{Freqs: []float64{0}, Power: []float64{0}}
	}

	window := hann(segLen)
	var windowPower float64
	for _, w := range window {
		windowPower += w * w
	}
	scale := 1.0 / (sampleRate * windowPower)

	fft := fourier.NewFFT(segLen)
	nBins := segLen/2 + 1
	power := make([]float64, nBins)
	step := segLen / 2
	if step < 1 {
		step = 1
	}

	segments := 0
	buf := make([]float64, segLen)
	for start := 0; start+segLen <= len(x); start += step {
		seg := x[start : start+segLen]
		mean := 0.0
		for _, v := range seg {
			mean += v
		}
		mean /= float64(segLen)
		for i, v := range seg {
			buf[i] = (v - mean) * window[i]
		}
		coeffs := fft.Coefficients(nil, buf)
		for i, c := range coeffs {
			p := real(c)*real(c) + imag(c)*imag(c)
			// one-sided estimate doubles everything but DC and Nyquist
			if i != 0 && i != nBins-1 {
				p *= 2
			}
			power[i] += p * scale
		}
		segments++
	}
	if segments > 1 {
		for i := range power {
			power[i] /= float64(segments)
		}
	}

	freqs := make([]float64, nBins)
	for i := range freqs {
		freqs[i] = float64(i) * sampleRate / float64(segLen)
	}
	return PSD{Freqs: freqs, Power: power}
}

// BandPower returns the mean density over [loHz, hiHz].
func (p PSD) BandPower(loHz, hiHz float64) float64 {
	var sum float64
	var count int
	for i, f := range p.Freqs {
		if f >= loHz && f <= hiHz {
			sum += p.Power[i]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// TotalPower returns the mean density over the whole estimate.
func (p PSD) TotalPower() float64 {
	if len(p.Power) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Power {
		sum += v
	}
	return sum / float64(len(p.Power))
}

// PeakFrequency returns the frequency with the highest density above loHz.
// Used by tests to check that filtering leaves pass-band peaks in place.
func (p PSD) PeakFrequency(loHz float64) float64 {
	best := -1
	for i, f := range p.Freqs {
		if f < loHz {
			continue
		}
		if best < 0 || p.Power[i] > p.Power[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return p.Freqs[best]
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
