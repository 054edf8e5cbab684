// Package graph defines the abstract audio-graph surface the synthesis
// engine builds against, plus its concrete backends: a pure-Go software
// renderer, an oto-backed output device, and a recording mock for tests.
// Voice construction and the playback engine depend only on the Builder
// interface, so the concrete backend can vary by platform.
package graph

import "time"

// Waveform selects an oscillator shape.
type Waveform int

const (
	// WaveSine is a sine oscillator.
	WaveSine Waveform = iota
	// WaveSawtooth is a sawtooth oscillator.
	WaveSawtooth
)

// String returns the waveform name.
func (w Waveform) String() string {
	if w == WaveSawtooth {
		return "sawtooth"
	}
	return "sine"
}

// FilterKind selects a filter response.
type FilterKind int

const (
	// FilterLowpass is a resonant lowpass.
	FilterLowpass FilterKind = iota
	// FilterBandpass is a resonant bandpass.
	FilterBandpass
)

// String returns the filter kind name.
func (k FilterKind) String() string {
	if k == FilterBandpass {
		return "bandpass"
	}
	return "lowpass"
}

// Param is an automatable node parameter. Scheduled segments queue after
// one another: a ramp starts where the previously scheduled segment ends,
// or immediately when nothing is queued. Set discards the queue.
type Param interface {
	// Value returns the parameter value at the current graph time.
	Value() float64

	// Set jumps to v immediately and discards queued automation.
	Set(v float64)

	// SetAt jumps to v after the given delay from now, queued after any
	// scheduled segments.
	SetAt(v float64, delay time.Duration)

	// RampLinear ramps linearly to target over d.
	RampLinear(target float64, d time.Duration)

	// RampExp ramps exponentially toward target over d. The target must be
	// non-zero; decays aim at a small epsilon instead of zero.
	RampExp(target float64, d time.Duration)

	// RampTarget approaches target asymptotically with the given time
	// constant, the smoothing used for retunes and master-gain moves.
	RampTarget(target float64, timeConstant time.Duration)
}

// Node is one processing element in the graph.
type Node interface {
	// Connect routes this node's output into dst's input.
	Connect(dst Node)

	// ConnectParam routes this node's output into a parameter, where it is
	// summed with the parameter's automation value (LFO and FM routing).
	ConnectParam(p Param)

	// Disconnect severs every outgoing connection. Disconnecting an
	// already-disconnected node is a no-op.
	Disconnect()
}

// Oscillator is a periodic source node.
type Oscillator interface {
	Node

	// Frequency is the oscillator frequency in Hz.
	Frequency() Param

	// Start begins sound production. Starting twice is a no-op.
	Start()

	// Stop silences the oscillator permanently. Stopping twice is a no-op.
	Stop()
}

// Filter is a biquad filter node.
type Filter interface {
	Node

	// Cutoff is the cutoff (lowpass) or center (bandpass) frequency in Hz.
	Cutoff() Param

	// Resonance is the filter Q.
	Resonance() Param
}

// Gain is an amplitude stage.
type Gain interface {
	Node

	// Level is the gain multiplier.
	Level() Param
}

// Noise is a looping uniform-white-noise buffer source.
type Noise interface {
	Node

	// Start begins playback of the noise loop.
	Start()

	// Stop silences the source permanently.
	Stop()
}

// Timer is a handle to a scheduled callback. Cancelling twice is safe.
type Timer interface {
	Cancel()
}

// Builder constructs and schedules against one audio graph. All methods
// are safe for use from the caller's goroutine; timer callbacks are
// dispatched on the backend's timeline with no graph lock held, so they
// may call back into the Builder freely.
type Builder interface {
	// Oscillator creates a stopped oscillator at the given frequency.
	Oscillator(w Waveform, freq float64) Oscillator

	// Filter creates a filter with the given cutoff and Q.
	Filter(k FilterKind, cutoff, resonance float64) Filter

	// Gain creates a gain stage at the given level.
	Gain(level float64) Gain

	// Noise creates a stopped noise source with the given loop length.
	Noise(loop time.Duration) Noise

	// Destination is the output mix bus. Anything audible connects here,
	// directly or through other nodes.
	Destination() Node

	// Now is the current position of the graph clock.
	Now() time.Duration

	// After schedules fn once, d from now.
	After(d time.Duration, fn func()) Timer

	// Every schedules fn repeatedly, first firing d from now.
	Every(d time.Duration, fn func()) Timer

	// Spectrum fills bins with an approximate magnitude spectrum of the
	// most recent output, each value in [0, 1]. Low bins hold low
	// frequencies.
	Spectrum(bins []float64)

	// Close tears the backend down and releases any device resources.
	Close() error
}
