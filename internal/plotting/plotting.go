// Package plotting renders PNG diagnostics for cleaning runs: spectral
// density comparisons and raw signal snippets.
package plotting

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/spectral"
)

// psdFloorDB keeps log-scale power plots bounded when a band has been
// filtered to near zero.
const psdFloorDB = -40.0

// SavePSDComparison plots the channel-averaged power spectral density of the
// raw and cleaned recordings on a dB scale and writes a PNG to path.
func SavePSDComparison(path string, raw, cleaned *eeg.Recording, maxHz float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Power Spectral Density"
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Power (dB)"

	rawLine, err := psdLine(raw, maxHz)
	if err != nil {
		return err
	}
	rawLine.Color = color.RGBA{R: 170, G: 170, B: 170, A: 255}
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	cleanLine, err := psdLine(cleaned, maxHz)
	if err != nil {
		return err
	}
	cleanLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	cleanLine.Width = vg.Points(1.5)
	p.Add(cleanLine)
	p.Legend.Add("cleaned", cleanLine)

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save PSD plot: %w", err)
	}
	return nil
}

// SaveSignalSnippet plots a short window of every channel from both
// recordings, vertically stacked with a fixed offset so traces stay legible.
func SaveSignalSnippet(path string, raw, cleaned *eeg.Recording, startSec, durSec float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	lo, hi, err := snippetBounds(raw, startSec, durSec)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Signal Comparison"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Channel"
	p.Y.Tick.Marker = channelTicks{channels: raw.Channels}

	offset := stackOffset(raw, lo, hi)
	for c := 0; c < raw.NumChannels(); c++ {
		base := float64(raw.NumChannels()-1-c) * offset

		rawLine, err := traceLine(raw, c, lo, hi, base, offset)
		if err != nil {
			return err
		}
		rawLine.Color = color.RGBA{R: 190, G: 190, B: 190, A: 255}
		rawLine.Width = vg.Points(0.75)
		p.Add(rawLine)

		cleanLine, err := traceLine(cleaned, c, lo, hi, base, offset)
		if err != nil {
			return err
		}
		cleanLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		cleanLine.Width = vg.Points(0.75)
		p.Add(cleanLine)
	}

	if err := p.Save(12*vg.Inch, vg.Length(math.Max(4, float64(raw.NumChannels())/3))*vg.Inch, path); err != nil {
		return fmt.Errorf("save signal plot: %w", err)
	}
	return nil
}

// SaveComponentMixing plots each decomposition component's spatial mixing
// weights across the channels it was unmixed from, stacked vertically with
// removed components in red. Weights are normalised per component so every
// topography is legible regardless of its variance.
func SaveComponentMixing(path string, channelNames []string, mixings [][]float64, removed []bool) error {
	if len(mixings) == 0 {
		return fmt.Errorf("no components to plot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Component Topographies"
	p.X.Label.Text = "Channel"
	p.Y.Label.Text = "Component"
	p.X.Tick.Marker = nameTicks{names: channelNames}
	p.Y.Tick.Marker = componentTicks{n: len(mixings)}

	for i, mix := range mixings {
		base := float64(len(mixings) - 1 - i)
		peak := peakAbs(mix)
		if peak == 0 {
			peak = 1
		}
		pts := make(plotter.XYs, len(mix))
		for c, w := range mix {
			pts[c] = plotter.XY{X: float64(c), Y: base + w/peak*0.4}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		if i < len(removed) && removed[i] {
			line.Color = color.RGBA{R: 176, G: 42, B: 42, A: 255}
		} else {
			line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	height := vg.Length(math.Max(4, float64(len(mixings))/2)) * vg.Inch
	if err := p.Save(10*vg.Inch, height, path); err != nil {
		return fmt.Errorf("save topography plot: %w", err)
	}
	return nil
}

// psdLine builds the channel-averaged Welch PSD up to maxHz, in dB relative
// to 1 uV^2/Hz.
func psdLine(rec *eeg.Recording, maxHz float64) (*plotter.Line, error) {
	segLen := int(rec.SampleRate)
	if segLen > rec.NumSamples() {
		segLen = rec.NumSamples()
	}

	var freqs []float64
	var mean []float64
	for c := 0; c < rec.NumChannels(); c++ {
		psd := spectral.Welch(rec.Data[c], rec.SampleRate, segLen)
		if mean == nil {
			freqs = psd.Freqs
			mean = make([]float64, len(psd.Power))
		}
		for i, v := range psd.Power {
			mean[i] += v / float64(rec.NumChannels())
		}
	}

	pts := make(plotter.XYs, 0, len(freqs))
	for i, f := range freqs {
		if maxHz > 0 && f > maxHz {
			break
		}
		db := psdFloorDB
		if mean[i] > 0 {
			db = math.Max(psdFloorDB, 10*math.Log10(mean[i]))
		}
		pts = append(pts, plotter.XY{X: f, Y: db})
	}
	return plotter.NewLine(pts)
}

func traceLine(rec *eeg.Recording, channel, lo, hi int, base, offset float64) (*plotter.Line, error) {
	scale := 1.0
	if offset > 0 {
		scale = offset * 0.4
	}
	peak := peakAbs(rec.Data[channel][lo:hi])
	if peak == 0 {
		peak = 1
	}

	pts := make(plotter.XYs, 0, hi-lo)
	for s := lo; s < hi; s++ {
		pts = append(pts, plotter.XY{
			X: float64(s) / rec.SampleRate,
			Y: base + rec.Data[channel][s]/peak*scale,
		})
	}
	return plotter.NewLine(pts)
}

func snippetBounds(rec *eeg.Recording, startSec, durSec float64) (lo, hi int, err error) {
	if startSec < 0 {
		startSec = 0
	}
	if durSec <= 0 {
		durSec = 10
	}
	lo = int(startSec * rec.SampleRate)
	hi = lo + int(durSec*rec.SampleRate)
	if hi > rec.NumSamples() {
		hi = rec.NumSamples()
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("snippet window [%gs, %gs) is outside the recording", startSec, startSec+durSec)
	}
	return lo, hi, nil
}

// stackOffset picks the vertical spacing between stacked traces from the
// median channel peak in the window.
func stackOffset(rec *eeg.Recording, lo, hi int) float64 {
	peaks := make([]float64, rec.NumChannels())
	for c := range peaks {
		peaks[c] = peakAbs(rec.Data[c][lo:hi])
	}
	if len(peaks) == 0 {
		return 1
	}
	for i := 1; i < len(peaks); i++ {
		for j := i; j > 0 && peaks[j] < peaks[j-1]; j-- {
			peaks[j], peaks[j-1] = peaks[j-1], peaks[j]
		}
	}
	med := peaks[len(peaks)/2]
	if med == 0 {
		return 1
	}
	return med * 2.5
}

func peakAbs(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// nameTicks labels integer axis positions with the given names.
type nameTicks struct {
	names []string
}

func (t nameTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, len(t.names))
	for i, name := range t.names {
		v := float64(i)
		if v < min || v > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: name})
	}
	return ticks
}

// componentTicks labels stacked topographies IC0..ICn-1 from the top down.
type componentTicks struct {
	n int
}

func (t componentTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, t.n)
	for i := 0; i < t.n; i++ {
		v := float64(t.n - 1 - i)
		if v < min || v > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf("IC%d", i)})
	}
	return ticks
}

// channelTicks labels stacked traces with their channel names.
type channelTicks struct {
	channels []eeg.Channel
}

func (t channelTicks) Ticks(min, max float64) []plot.Tick {
	n := len(t.channels)
	if n == 0 {
		return nil
	}
	spacing := (max - min) / float64(n)
	ticks := make([]plot.Tick, 0, n)
	for i, ch := range t.channels {
		ticks = append(ticks, plot.Tick{
			Value: min + spacing*(float64(n-1-i)+0.5),
			Label: ch.Name,
		})
	}
	return ticks
}
