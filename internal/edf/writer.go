package edf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
)

// Metadata carries the identification fields written into an EDF header.
type Metadata struct {
	PatientID   string
	RecordingID string
	StartTime   time.Time
}

// WriteRecording saves a Recording as an EDF file. Amplitudes are written in
// microvolts with 16-bit resolution over each channel's observed range.
func WriteRecording(path string, rec *eeg.Recording, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create EDF file: %w", err)
	}
	defer f.Close()
	return Write(f, rec, meta)
}

// Write encodes rec as EDF. Integer sampling rates use one-second data
// records; fractional rates fall back to a single record covering the whole
// recording. Trailing samples that do not fill a record are dropped.
func Write(w io.Writer, rec *eeg.Recording, meta Metadata) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	n := rec.NumSamples()
	spr := n
	records := 1
	duration := float64(n) / rec.SampleRate
	if isIntegral(rec.SampleRate) && n >= int(rec.SampleRate) {
		spr = int(rec.SampleRate)
		records = n / spr
		duration = 1
	}

	signals := make([]Signal, rec.NumChannels())
	for c := range signals {
		lo, hi := channelRange(rec.Data[c])
		signals[c] = Signal{
			Label:             signalLabel(rec.Channels[c]),
			PhysicalDimension: "uV",
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  spr,
		}
	}

	if err := writeHeader(w, meta, signals, records, duration); err != nil {
		return err
	}

	buf := make([]byte, spr*bytesPerSample)
	for record := 0; record < records; record++ {
		offset := record * spr
		for c, sig := range signals {
			gain := sig.gain()
			for s := 0; s < spr; s++ {
				v := rec.Data[c][offset+s]
				dig := math.Round((v-sig.PhysicalMin)/gain) + float64(sig.DigitalMin)
				if dig < -32768 {
					dig = -32768
				}
				if dig > 32767 {
					dig = 32767
				}
				binary.LittleEndian.PutUint16(buf[s*bytesPerSample:], uint16(int16(dig)))
			}
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("failed to write data record %d: %w", record, err)
			}
		}
	}
	return nil
}

func writeHeader(w io.Writer, meta Metadata, signals []Signal, records int, duration float64) error {
	ns := len(signals)
	start := meta.StartTime
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}

	var out []byte
	pad := func(s string, width int) {
		if len(s) > width {
			s = s[:width]
		}
		out = append(out, s...)
		for i := len(s); i < width; i++ {
			out = append(out, ' ')
		}
	}

	pad("0", 8)
	pad(meta.PatientID, 80)
	pad(meta.RecordingID, 80)
	pad(start.Format("02.01.06"), 8)
	pad(start.Format("15.04.05"), 8)
	pad(strconv.Itoa(headerBaseBytes+ns*headerPerSignalBytes), 8)
	pad("", 44)
	pad(strconv.Itoa(records), 8)
	pad(formatFloat(duration, 8), 8)
	pad(strconv.Itoa(ns), 4)

	each := func(width int, value func(Signal) string) {
		for _, sig := range signals {
			pad(value(sig), width)
		}
	}
	each(16, func(s Signal) string { return s.Label })
	each(80, func(s Signal) string { return s.TransducerType })
	each(8, func(s Signal) string { return s.PhysicalDimension })
	each(8, func(s Signal) string { return formatFloat(s.PhysicalMin, 8) })
	each(8, func(s Signal) string { return formatFloat(s.PhysicalMax, 8) })
	each(8, func(s Signal) string { return strconv.Itoa(s.DigitalMin) })
	each(8, func(s Signal) string { return strconv.Itoa(s.DigitalMax) })
	each(80, func(s Signal) string { return s.Prefiltering })
	each(8, func(s Signal) string { return strconv.Itoa(s.SamplesPerRecord) })
	each(32, func(s Signal) string { return s.Reserved })

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// formatFloat renders a float into the fixed-width ASCII fields EDF uses,
// dropping trailing zeros and trimming precision until it fits.
func formatFloat(v float64, width int) string {
	for prec := 6; prec >= 0; prec-- {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if prec > 0 {
			s = strings.TrimRight(s, "0")
			s = strings.TrimSuffix(s, ".")
		}
		if len(s) <= width {
			return s
		}
	}
	return strconv.FormatFloat(v, 'g', 2, 64)
}

// channelRange returns the observed amplitude range, widened when flat so the
// digital gain stays finite.
func channelRange(x []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo >= hi {
		lo, hi = lo-1, hi+1
	}
	return lo, hi
}

func signalLabel(ch eeg.Channel) string {
	switch ch.Type {
	case eeg.ChannelAuxiliary:
		return ch.Name
	case eeg.ChannelReference:
		return "EEG " + ch.Name
	default:
		return "EEG " + ch.Name
	}
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v)
}
