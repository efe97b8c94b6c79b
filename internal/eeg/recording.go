// Package eeg defines the in-memory representation of a multichannel EEG
// recording and the structural invariants every pipeline stage relies on.
//
// A Recording flows through the cleaning pipeline by ownership transfer:
// stages return a new Recording (or a mutated clone) so the caller always
// holds exactly one authoritative copy.
package eeg

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRecording indicates a structural invariant violation, such as
// channels with mismatched sample counts or a non-positive sampling rate.
// Every stage validates at entry and wraps this sentinel with context.
var ErrMalformedRecording = errors.New("malformed recording")

// ChannelType describes the physical role of a channel.
type ChannelType string

const (
	// ChannelScalp is a standard scalp electrode.
	ChannelScalp ChannelType = "scalp"
	// ChannelReference is a reference electrode.
	ChannelReference ChannelType = "reference"
	// ChannelAuxiliary covers non-EEG channels (EOG, ECG, triggers).
	ChannelAuxiliary ChannelType = "auxiliary"
)

// ChannelFlag records the cleaning status of a channel. Flagged channels are
// excluded from downstream computation but their data is retained for
// provenance and interpolation.
type ChannelFlag int

const (
	// FlagGood marks a usable channel.
	FlagGood ChannelFlag = iota
	// FlagBad marks a channel excluded by the bad-channel detector.
	FlagBad
	// FlagInterpolated marks a bad channel whose data has been rebuilt
	// from neighbouring good channels.
	FlagInterpolated
)

// String returns the flag name used in reports and logs.
func (f ChannelFlag) String() string {
	switch f {
	case FlagGood:
		return "good"
	case FlagBad:
		return "bad"
	case FlagInterpolated:
		return "interpolated"
	default:
		return fmt.Sprintf("flag(%d)", int(f))
	}
}

// Position is an electrode location in head-centred cartesian coordinates
// (metres, x right, y front, z up).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Channel holds the metadata for one recording channel.
type Channel struct {
	Name     string      `json:"name"`
	Unit     string      `json:"unit"`
	Type     ChannelType `json:"type"`
	Position *Position   `json:"position,omitempty"`
}

// Recording is a complete multichannel EEG time series. Data is channel-major:
// Data[c][s] is sample s of channel c. All channels have identical length and
// share one constant sampling rate; non-uniform sampling is out of scope.
type Recording struct {
	Data       [][]float64
	SampleRate float64
	Channels   []Channel
	Flags      []ChannelFlag
}

// New allocates a zeroed Recording with the given channels and sample count.
func New(channels []Channel, numSamples int, sampleRate float64) *Recording {
	data := make([][]float64, len(channels))
	for i := range data {
		data[i] = make([]float64, numSamples)
	}
	return &Recording{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   append([]Channel(nil), channels...),
		Flags:      make([]ChannelFlag, len(channels)),
	}
}

// NumChannels returns the channel count, including flagged channels.
func (r *Recording) NumChannels() int { return len(r.Data) }

// NumSamples returns the per-channel sample count.
func (r *Recording) NumSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Duration returns the recording length.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(r.NumSamples()) / r.SampleRate * float64(time.Second))
}

// Nyquist returns half the sampling rate.
func (r *Recording) Nyquist() float64 { return r.SampleRate / 2 }

// Validate checks the structural invariants. It returns an error wrapping
// ErrMalformedRecording on the first violation found.
func (r *Recording) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil recording", ErrMalformedRecording)
	}
	if r.SampleRate <= 0 {
		return fmt.Errorf("%w: sampling rate %g Hz must be positive", ErrMalformedRecording, r.SampleRate)
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: no channels", ErrMalformedRecording)
	}
	if len(r.Channels) != len(r.Data) {
		return fmt.Errorf("%w: %d channel descriptors for %d data channels",
			ErrMalformedRecording, len(r.Channels), len(r.Data))
	}
	if len(r.Flags) != len(r.Data) {
		return fmt.Errorf("%w: %d channel flags for %d data channels",
			ErrMalformedRecording, len(r.Flags), len(r.Data))
	}
	n := len(r.Data[0])
	for c, samples := range r.Data {
		if len(samples) != n {
			return fmt.Errorf("%w: channel %d has %d samples, channel 0 has %d",
				ErrMalformedRecording, c, len(samples), n)
		}
	}
	return nil
}

// Clone returns a deep copy. Stages that mutate in place clone first so the
// caller's copy stays untouched.
func (r *Recording) Clone() *Recording {
	out := &Recording{
		Data:       make([][]float64, len(r.Data)),
		SampleRate: r.SampleRate,
		Channels:   append([]Channel(nil), r.Channels...),
		Flags:      append([]ChannelFlag(nil), r.Flags...),
	}
	for c, samples := range r.Data {
		out.Data[c] = append([]float64(nil), samples...)
	}
	return out
}

// GoodChannels returns the indices of channels not flagged bad, in ascending
// order. Interpolated channels count as good.
func (r *Recording) GoodChannels() []int {
	good := make([]int, 0, len(r.Flags))
	for c, f := range r.Flags {
		if f != FlagBad {
			good = append(good, c)
		}
	}
	return good
}

// BadChannels returns the indices of channels flagged bad, in ascending order.
func (r *Recording) BadChannels() []int {
	bad := make([]int, 0, len(r.Flags))
	for c, f := range r.Flags {
		if f == FlagBad {
			bad = append(bad, c)
		}
	}
	return bad
}

// ChannelIndex returns the index of the named channel, or -1.
func (r *Recording) ChannelIndex(name string) int {
	for c := range r.Channels {
		if r.Channels[c].Name == name {
			return c
		}
	}
	return -1
}
