// Package report renders the HTML summary for a cleaning run: an overview of
// the decisions in the CleaningReport plus interactive ECharts comparisons of
// the raw and cleaned signals.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/eeg/pipeline"
	"github.com/neuro-analyst/neuroclean/internal/eeg/spectral"
)

//go:embed report.html
var reportFS embed.FS

const (
	// snippetSeconds is the length of the signal comparison window.
	snippetSeconds = 10.0
	// psdMaxHz caps the spectral comparison's frequency axis.
	psdMaxHz = 80.0
)

// Generate writes the full report bundle into dir: report.html plus the
// psd_compare.html and signal_compare.html charts it embeds as iframes.
// Returns the path of the main report file.
func Generate(dir string, rep *pipeline.CleaningReport, raw, cleaned *eeg.Recording) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	if err := writePSDChart(filepath.Join(dir, "psd_compare.html"), raw, cleaned); err != nil {
		return "", fmt.Errorf("PSD chart: %w", err)
	}
	if err := writeSignalChart(filepath.Join(dir, "signal_compare.html"), raw, cleaned); err != nil {
		return "", fmt.Errorf("signal chart: %w", err)
	}

	tmpl, err := template.ParseFS(reportFS, "report.html")
	if err != nil {
		return "", fmt.Errorf("failed to parse report template: %w", err)
	}

	out := filepath.Join(dir, "report.html")
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	data := struct {
		Report      *pipeline.CleaningReport
		Duration    string
		NumRemoved  int
		FilterBand  string
		NotchLabel  string
		ElapsedSecs float64
	}{
		Report:      rep,
		Duration:    fmt.Sprintf("%.1f s", float64(rep.NumSamples)/rep.SampleRate),
		NumRemoved:  rep.NumRemoved(),
		FilterBand:  filterBandLabel(rep.Filter),
		NotchLabel:  notchLabel(rep.Filter),
		ElapsedSecs: rep.FinishedAt.Sub(rep.StartedAt).Seconds(),
	}
	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return out, nil
}

func filterBandLabel(f pipeline.FilterRecord) string {
	switch {
	case f.HighPassHz != nil && f.LowPassHz != nil:
		return fmt.Sprintf("%.1f-%.1f Hz band-pass", *f.HighPassHz, *f.LowPassHz)
	case f.HighPassHz != nil:
		return fmt.Sprintf("%.1f Hz high-pass", *f.HighPassHz)
	case f.LowPassHz != nil:
		return fmt.Sprintf("%.1f Hz low-pass", *f.LowPassHz)
	default:
		return "none"
	}
}

func notchLabel(f pipeline.FilterRecord) string {
	if len(f.NotchHz) == 0 {
		return "none"
	}
	s := ""
	for i, hz := range f.NotchHz {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%.0f Hz", hz)
	}
	if f.NotchHarmonics {
		s += " (with harmonics)"
	}
	return s
}

// writePSDChart renders the channel-averaged Welch PSD of both recordings.
func writePSDChart(path string, raw, cleaned *eeg.Recording) error {
	rawPSD, err := meanPSD(raw)
	if err != nil {
		return err
	}
	cleanPSD, err := meanPSD(cleaned)
	if err != nil {
		return err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Power Spectral Density", Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "Power Spectral Density", Subtitle: "channel average, Welch method"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frequency (Hz)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Power (dB)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	var xAxis []string
	rawData := make([]opts.LineData, 0, len(rawPSD.Freqs))
	cleanData := make([]opts.LineData, 0, len(cleanPSD.Freqs))
	for i, f := range rawPSD.Freqs {
		if f > psdMaxHz {
			break
		}
		xAxis = append(xAxis, fmt.Sprintf("%.1f", f))
		rawData = append(rawData, opts.LineData{Value: decibels(rawPSD.Power[i])})
		if i < len(cleanPSD.Power) {
			cleanData = append(cleanData, opts.LineData{Value: decibels(cleanPSD.Power[i])})
		}
	}

	line.SetXAxis(xAxis).
		AddSeries("raw", rawData).
		AddSeries("cleaned", cleanData).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return renderToFile(path, line)
}

// writeSignalChart renders a short window of the first scalp channel from
// both recordings.
func writeSignalChart(path string, raw, cleaned *eeg.Recording) error {
	channel := 0
	for i, ch := range raw.Channels {
		if ch.Type == eeg.ChannelScalp {
			channel = i
			break
		}
	}

	n := int(snippetSeconds * raw.SampleRate)
	if n > raw.NumSamples() {
		n = raw.NumSamples()
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Signal Comparison", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Signal Comparison", Subtitle: fmt.Sprintf("channel %s, first %.0f s", raw.Channels[channel].Name, float64(n)/raw.SampleRate)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Amplitude (uV)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	xAxis := make([]string, n)
	rawData := make([]opts.LineData, n)
	cleanData := make([]opts.LineData, n)
	for s := 0; s < n; s++ {
		xAxis[s] = fmt.Sprintf("%.2f", float64(s)/raw.SampleRate)
		rawData[s] = opts.LineData{Value: raw.Data[channel][s]}
		cleanData[s] = opts.LineData{Value: cleaned.Data[channel][s]}
	}

	line.SetXAxis(xAxis).
		AddSeries("raw", rawData).
		AddSeries("cleaned", cleanData)

	return renderToFile(path, line)
}

func renderToFile(path string, chart interface{ Render(w io.Writer) error }) error {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func meanPSD(rec *eeg.Recording) (*spectral.PSD, error) {
	segLen := int(rec.SampleRate)
	if segLen > rec.NumSamples() {
		segLen = rec.NumSamples()
	}
	var mean *spectral.PSD
	for c := 0; c < rec.NumChannels(); c++ {
		psd := spectral.Welch(rec.Data[c], rec.SampleRate, segLen)
		if mean == nil {
			mean = &spectral.PSD{Freqs: psd.Freqs, Power: make([]float64, len(psd.Power))}
		}
		for i, v := range psd.Power {
			mean.Power[i] += v / float64(rec.NumChannels())
		}
	}
	if mean == nil {
		return nil, fmt.Errorf("recording has no channels")
	}
	return mean, nil
}

func decibels(power float64) float64 {
	if power <= 0 {
		return -40
	}
	db := 10 * math.Log10(power)
	if db < -40 {
		db = -40
	}
	return db
}
