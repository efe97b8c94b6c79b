package edf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neuro-analyst/neuroclean/internal/eeg"
	"github.com/neuro-analyst/neuroclean/internal/units"
)

// ReadRecording loads an EDF file into a Recording. Sample values are
// converted to physical units and normalised to microvolts.
func ReadRecording(path string) (*eeg.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EDF file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses an EDF stream.
func Read(r io.Reader) (*eeg.Recording, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	kept := make([]int, 0, hdr.SignalCount)
	for i, sig := range hdr.Signals {
		if sig.Label == annotationLabel {
			continue
		}
		kept = append(kept, i)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no data signals", ErrUnsupported)
	}

	// the Recording model requires one uniform sampling rate
	spr := hdr.Signals[kept[0]].SamplesPerRecord
	for _, i := range kept {
		if hdr.Signals[i].SamplesPerRecord != spr {
			return nil, fmt.Errorf("%w: mixed sampling rates (%d and %d samples/record)",
				ErrUnsupported, spr, hdr.Signals[i].SamplesPerRecord)
		}
	}
	if hdr.DataRecordDuration <= 0 {
		return nil, fmt.Errorf("%w: non-positive record duration", ErrBadHeader)
	}
	sampleRate := float64(spr) / hdr.DataRecordDuration

	channels := make([]eeg.Channel, len(kept))
	for c, i := range kept {
		channels[c] = channelFromSignal(hdr.Signals[i])
	}
	rec := eeg.New(channels, hdr.DataRecords*spr, sampleRate)

	buf := make([]byte, spr*bytesPerSample)
	for record := 0; record < hdr.DataRecords; record++ {
		offset := record * spr
		for i, sig := range hdr.Signals {
			n := sig.SamplesPerRecord * bytesPerSample
			if n > len(buf) {
				buf = make([]byte, n)
			}
			if _, err := io.ReadFull(r, buf[:n]); err != nil {
				return nil, fmt.Errorf("failed to read data record %d: %w", record, err)
			}
			c := keptIndex(kept, i)
			if c < 0 {
				continue
			}
			gain := sig.gain()
			for s := 0; s < sig.SamplesPerRecord; s++ {
				dig := int16(binary.LittleEndian.Uint16(buf[s*bytesPerSample:]))
				phys := (float64(dig)-float64(sig.DigitalMin))*gain + sig.PhysicalMin
				rec.Data[c][offset+s] = units.ToMicrovolts(phys, strings.TrimSpace(sig.PhysicalDimension))
			}
		}
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReadHeader parses only the header of an EDF file.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EDF file: %w", err)
	}
	defer f.Close()
	return readHeader(f)
}

func readHeader(r io.Reader) (*Header, error) {
	fixed := make([]byte, headerBaseBytes)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	field := func(start, width int) string {
		return strings.TrimSpace(string(fixed[start : start+width]))
	}

	hdr := &Header{
		Version:     field(0, 8),
		PatientID:   field(8, 80),
		RecordingID: field(88, 80),
	}

	start, err := time.Parse("02.01.06 15.04.05", field(168, 8)+" "+field(176, 8))
	if err == nil {
		hdr.StartTime = start
	}

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 8)); err != nil {
		return nil, fmt.Errorf("%w: header bytes: %v", ErrBadHeader, err)
	}
	if hdr.DataRecords, err = strconv.Atoi(field(236, 8)); err != nil {
		return nil, fmt.Errorf("%w: data records: %v", ErrBadHeader, err)
	}
	if hdr.DataRecordDuration, err = strconv.ParseFloat(field(244, 8), 64); err != nil {
		return nil, fmt.Errorf("%w: record duration: %v", ErrBadHeader, err)
	}
	if hdr.SignalCount, err = strconv.Atoi(field(252, 4)); err != nil {
		return nil, fmt.Errorf("%w: signal count: %v", ErrBadHeader, err)
	}
	if hdr.SignalCount <= 0 {
		return nil, fmt.Errorf("%w: %d signals", ErrBadHeader, hdr.SignalCount)
	}
	if hdr.DataRecords < 0 {
		return nil, fmt.Errorf("%w: unknown record count unsupported", ErrUnsupported)
	}

	ns := hdr.SignalCount
	perSignal := make([]byte, ns*headerPerSignalBytes)
	if _, err := io.ReadFull(r, perSignal); err != nil {
		return nil, fmt.Errorf("%w: signal headers: %v", ErrBadHeader, err)
	}

	// signal headers are field-major: all labels, then all transducers, ...
	cursor := 0
	sigField := func(width int) []string {
		out := make([]string, ns)
		for i := 0; i < ns; i++ {
			raw := perSignal[cursor+i*width : cursor+(i+1)*width]
			out[i] = strings.TrimSpace(string(raw))
		}
		cursor += ns * width
		return out
	}

	labels := sigField(16)
	transducers := sigField(80)
	dims := sigField(8)
	physMins := sigField(8)
	physMaxs := sigField(8)
	digMins := sigField(8)
	digMaxs := sigField(8)
	prefilters := sigField(80)
	sprs := sigField(8)
	reserved := sigField(32)

	hdr.Signals = make([]Signal, ns)
	for i := 0; i < ns; i++ {
		sig := Signal{
			Label:             labels[i],
			TransducerType:    transducers[i],
			PhysicalDimension: dims[i],
			Prefiltering:      prefilters[i],
			Reserved:          reserved[i],
		}
		if sig.PhysicalMin, err = strconv.ParseFloat(physMins[i], 64); err != nil {
			return nil, fmt.Errorf("%w: signal %d physical min: %v", ErrBadHeader, i, err)
		}
		if sig.PhysicalMax, err = strconv.ParseFloat(physMaxs[i], 64); err != nil {
			return nil, fmt.Errorf("%w: signal %d physical max: %v", ErrBadHeader, i, err)
		}
		if sig.DigitalMin, err = strconv.Atoi(digMins[i]); err != nil {
			return nil, fmt.Errorf("%w: signal %d digital min: %v", ErrBadHeader, i, err)
		}
		if sig.DigitalMax, err = strconv.Atoi(digMaxs[i]); err != nil {
			return nil, fmt.Errorf("%w: signal %d digital max: %v", ErrBadHeader, i, err)
		}
		if sig.SamplesPerRecord, err = strconv.Atoi(sprs[i]); err != nil {
			return nil, fmt.Errorf("%w: signal %d samples/record: %v", ErrBadHeader, i, err)
		}
		if sig.SamplesPerRecord <= 0 {
			return nil, fmt.Errorf("%w: signal %d has %d samples/record", ErrBadHeader, i, sig.SamplesPerRecord)
		}
		hdr.Signals[i] = sig
	}
	return hdr, nil
}

// channelFromSignal maps an EDF signal header to channel metadata. EDF labels
// conventionally prefix the signal type ("EEG Fpz-Cz").
func channelFromSignal(sig Signal) eeg.Channel {
	name := sig.Label
	chType := eeg.ChannelScalp
	upper := strings.ToUpper(sig.Label)
	switch {
	case strings.HasPrefix(upper, "EOG"), strings.Contains(upper, "EOG "):
		chType = eeg.ChannelAuxiliary
	case strings.Contains(upper, "REF"):
		chType = eeg.ChannelReference
	case strings.HasPrefix(upper, "EEG "):
		name = strings.TrimSpace(sig.Label[4:])
	}
	return eeg.Channel{Name: name, Unit: units.Microvolts, Type: chType}
}

func keptIndex(kept []int, signal int) int {
	for c, i := range kept {
		if i == signal {
			return c
		}
	}
	return -1
}
