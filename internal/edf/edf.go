// Package edf reads and writes European Data Format (EDF) files, the
// interchange format the loader collaborator supports natively. Only
// continuous recordings with a uniform sampling rate are supported; EDF+
// annotation signals are skipped on read.
package edf

import (
	"errors"
	"time"
)

// ErrBadHeader indicates a structurally invalid EDF header.
var ErrBadHeader = errors.New("invalid EDF header")

// ErrUnsupported indicates a valid EDF file the pipeline cannot represent,
// such as signals with mismatched sampling rates.
var ErrUnsupported = errors.New("unsupported EDF layout")

// Header represents the EDF file header.
type Header struct {
	Version            string
	PatientID          string
	RecordingID        string
	StartTime          time.Time
	HeaderBytes        int
	DataRecords        int
	DataRecordDuration float64 // seconds
	SignalCount        int
	Signals            []Signal
}

// Signal represents the characteristics of one signal in the file.
type Signal struct {
	Label             string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	Prefiltering      string
	SamplesPerRecord  int
	Reserved          string
}

// annotationLabel marks EDF+ annotation signals, which carry no samples the
// pipeline can use.
const annotationLabel = "EDF Annotations"

// gain returns the digital-to-physical scaling for the signal.
func (s Signal) gain() float64 {
	digRange := s.DigitalMax - s.DigitalMin
	if digRange == 0 {
		return 1
	}
	return (s.PhysicalMax - s.PhysicalMin) / float64(digRange)
}

const (
	headerBaseBytes      = 256
	headerPerSignalBytes = 256
	bytesPerSample       = 2
)
