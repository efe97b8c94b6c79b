package channels

import (
	"fmt"
	"math"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

// Interpolate rebuilds every bad-flagged channel in place from the good
// channels and marks it interpolated. Channels with positions use
// inverse-distance weighting; without positions the good-channel mean signal
// is substituted. Returns the indices that were rebuilt.
func Interpolate(rec *eeg.Recording) ([]int, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	good := rec.GoodChannels()
	bad := rec.BadChannels()
	if len(bad) == 0 {
		return nil, nil
	}
	if len(good) == 0 {
		return nil, fmt.Errorf("%w: nothing to interpolate from", ErrInsufficientGoodChannels)
	}

	for _, b := range bad {
		weights := interpolationWeights(rec, b, good)
		dst := rec.Data[b]
		for s := range dst {
			var acc float64
			for i, g := range good {
				acc += weights[i] * rec.Data[g][s]
			}
			dst[s] = acc
		}
		rec.Flags[b] = eeg.FlagInterpolated
	}
	monitoring.Logf("channels: interpolated %d channel(s) from %d good", len(bad), len(good))
	return bad, nil
}

// interpolationWeights returns normalised weights over the good channels for
// rebuilding channel b. Inverse-distance when both electrodes have positions,
// uniform otherwise.
func interpolationWeights(rec *eeg.Recording, b int, good []int) []float64 {
	weights := make([]float64, len(good))
	target := rec.Channels[b].Position

	var sum float64
	for i, g := range good {
		src := rec.Channels[g].Position
		w := 1.0
		if target != nil && src != nil {
			d := distance(*target, *src)
			if d < 1e-9 {
				d = 1e-9
			}
			w = 1.0 / d
		}
		weights[i] = w
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func distance(a, b eeg.Position) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
