package filter

import "math"

// Kernel design uses windowed-sinc prototypes with a Hamming window. All
// kernels are odd-length linear-phase FIR, so zero-phase application reduces
// to compensating the fixed (taps-1)/2 group delay.

// hammingTaps returns the odd kernel length needed for the given transition
// bandwidth (Hz) at the given sampling rate. The 3.3 factor is the standard
// Hamming-window transition width in normalised frequency.
func hammingTaps(transitionHz, sampleRate float64) int {
	taps := int(math.Ceil(3.3 / (transitionHz / sampleRate)))
	if taps%2 == 0 {
		taps++
	}
	if taps < 3 {
		taps = 3
	}
	return taps
}

// sinc is the unnormalised sampling function sin(x)/x.
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(x) / x
}

// lowPassKernel designs an odd-length low-pass kernel with cutoff cutoffHz.
// The kernel is normalised to unit DC gain.
func lowPassKernel(cutoffHz, sampleRate float64, taps int) []float64 {
	h := make([]float64, taps)
	m := taps - 1
	wc := 2 * math.Pi * cutoffHz / sampleRate
	var sum float64
	for i := 0; i < taps; i++ {
		x := float64(i - m/2)
		h[i] = wc / math.Pi * sinc(wc*x)
		h[i] *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(m)) // Hamming
		sum += h[i]
	}
	for i := range h {
		h[i] /= sum
	}
	return h
}

// spectralInvert converts a kernel into its complement (delta - h). A low-pass
// kernel becomes high-pass, a band-pass kernel becomes band-stop.
func spectralInvert(h []float64) []float64 {
	out := make([]float64, len(h))
	for i := range h {
		out[i] = -h[i]
	}
	out[(len(h)-1)/2]++
	return out
}

// highPassKernel designs a high-pass kernel with cutoff cutoffHz.
func highPassKernel(cutoffHz, sampleRate float64, taps int) []float64 {
	return spectralInvert(lowPassKernel(cutoffHz, sampleRate, taps))
}

// bandPassKernel designs a band-pass kernel passing (lowHz, highHz).
func bandPassKernel(lowHz, highHz, sampleRate float64, taps int) []float64 {
	lp := lowPassKernel(highHz, sampleRate, taps)
	lpLow := lowPassKernel(lowHz, sampleRate, taps)
	out := make([]float64, taps)
	for i := range out {
		out[i] = lp[i] - lpLow[i]
	}
	return out
}

// bandStopKernel designs a notch kernel suppressing (lowHz, highHz).
func bandStopKernel(lowHz, highHz, sampleRate float64, taps int) []float64 {
	return spectralInvert(bandPassKernel(lowHz, highHz, sampleRate, taps))
}

// convolveZeroPhase convolves x with an odd-length linear-phase kernel and
// compensates the group delay, returning a slice of len(x). Edges use
// reflection padding so transients at the boundaries stay bounded.
func convolveZeroPhase(x, h []float64) []float64 {
	n := len(x)
	taps := len(h)
	delay := (taps - 1) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var acc float64
		for k := 0; k < taps; k++ {
			j := i + delay - k
			// reflect out-of-range indices back into the signal
			if j < 0 {
				j = -j
			}
			if j >= n {
				j = 2*n - 2 - j
			}
			if j < 0 || j >= n {
				continue
			}
			acc += h[k] * x[j]
		}
		out[i] = acc
	}
	return out
}
