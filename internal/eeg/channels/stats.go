// Package channels computes per-channel statistics, flags channels whose
// statistics deviate from the population, and rebuilds flagged channels by
// spatial interpolation.
package channels

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
)

// Statistics holds the derived metrics for one channel. Values are ephemeral:
// recomputed each run, never persisted.
type Statistics struct {
	Channel int `json:"channel"`
	// Variance is the raw sample variance.
	Variance float64 `json:"variance"`
	// RefCorrelation is the Pearson correlation with the median reference
	// signal built from all channels.
	RefCorrelation float64 `json:"ref_correlation"`
	// DeviationScore is the robust z-score of log-variance against the
	// population: |x - median| / (MAD * 1.4826).
	DeviationScore float64 `json:"deviation_score"`
}

// madScale converts a median absolute deviation to a standard-deviation
// equivalent under normality.
const madScale = 1.4826

// Compute derives Statistics for every channel. Per-channel work fans out
// over at most workers goroutines (NumCPU when workers <= 0); each goroutine
// writes only its own index, so results are independent of worker count.
func Compute(rec *eeg.Recording, workers int) []Statistics {
	n := rec.NumChannels()
	stats := make([]Statistics, n)
	ref := medianReference(rec)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	work := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				stats[c] = Statistics{
					Channel:        c,
					Variance:       stat.Variance(rec.Data[c], nil),
					RefCorrelation: refCorrelation(rec.Data[c], ref),
				}
			}
		}()
	}
	for c := 0; c < n; c++ {
		work <- c
	}
	close(work)
	wg.Wait()

	fillDeviationScores(stats)
	return stats
}

// refCorrelation is the Pearson correlation with the reference signal. A flat
// channel has no defined correlation; it is reported as 0 so statistics stay
// comparable and JSON-encodable.
func refCorrelation(x, ref []float64) float64 {
	r := stat.Correlation(x, ref, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// fillDeviationScores computes robust z-scores of log-variance across the
// population. A zero MAD (all channels identical) leaves every score at zero.
func fillDeviationScores(stats []Statistics) {
	logVars := make([]float64, len(stats))
	for i, s := range stats {
		// variance floor keeps flat channels finite; a flat channel is
		// caught by its huge negative log-variance instead
		logVars[i] = math.Log(math.Max(s.Variance, 1e-30))
	}
	centre := median(logVars)

	dev := make([]float64, len(logVars))
	for i, v := range logVars {
		dev[i] = math.Abs(v - centre)
	}
	spread := median(dev) * madScale
	if spread == 0 {
		return
	}
	for i := range stats {
		stats[i].DeviationScore = math.Abs(logVars[i]-centre) / spread
	}
}

// medianReference builds the per-sample median across channels. The median is
// robust to a minority of bad channels, unlike the mean reference.
func medianReference(rec *eeg.Recording) []float64 {
	n := rec.NumSamples()
	nc := rec.NumChannels()
	ref := make([]float64, n)
	col := make([]float64, nc)
	for s := 0; s < n; s++ {
		for c := 0; c < nc; c++ {
			col[c] = rec.Data[c][s]
		}
		ref[s] = median(col)
	}
	return ref
}

func median(x []float64) float64 {
	tmp := append([]float64(nil), x...)
	sort.Float64s(tmp)
	n := len(tmp)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return tmp[n/2]
	}
	return (tmp[n/2-1] + tmp[n/2]) / 2
}
