package synth

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kolradio/synthline/synth/graph"
)

// State is the engine lifecycle. The progression is one-way:
// Uninitialized -> Ready -> Destroyed.
type State int

const (
	// StateUninitialized means Init has not succeeded yet.
	StateUninitialized State = iota
	// StateReady means the output pipeline is up and operations work.
	StateReady
	// StateDestroyed is terminal; the engine must be reconstructed.
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

const (
	stopFadeTime = 300 * time.Millisecond
	masterTC     = 20 * time.Millisecond
	meterBins    = 32
	meterScale   = 1.4
)

// Config configures an Engine.
type Config struct {
	// SampleRate is the output rate for the default device backend.
	SampleRate int

	// Builder overrides the audio backend. When nil, Init opens the
	// default output device. Tests inject graph.NewMock here; offline
	// rendering injects graph.NewRenderer.
	Builder graph.Builder
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{SampleRate: graph.DefaultSampleRate}
}

// Engine is the playback engine: it owns the output pipeline, the master
// gain, and at most two voices (one current, one fading out during a
// crossfade). One engine per player; engines are never shared.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	state  State
	b      graph.Builder
	master graph.Gain

	volume float64
	muted  bool

	current  *Voice
	outgoing *Voice
}

// NewEngine creates an engine in the Uninitialized state.
func NewEngine(cfg Config) *Engine {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = graph.DefaultSampleRate
	}
	return &Engine{cfg: cfg, volume: 1}
}

// Init brings the output pipeline up. It is idempotent while Ready and
// fails with ErrEngineDestroyed after Destroy. On failure the engine
// remains Uninitialized and the error is the caller's "no audio
// available" signal; nothing is raised anywhere else.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateReady:
		return nil
	case StateDestroyed:
		return ErrEngineDestroyed
	}

	b := e.cfg.Builder
	if b == nil {
		d, err := graph.OpenDevice(e.cfg.SampleRate)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAudioUnavailable, err)
		}
		b = d
	}

	e.b = b
	e.master = b.Gain(e.effectiveGain())
	e.master.Connect(b.Destination())
	e.state = StateReady
	log.Info("engine ready", "sample_rate", e.cfg.SampleRate)
	return nil
}

// Ready reports whether the engine accepts playback operations.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PlayTrack derives the asset's parameters, builds its voice at silence,
// and crossfades it in over 1.5 s while ramping any prior voice out over
// the same window; the prior voice is torn down 200 ms after the window
// closes. The new voice is current immediately, so a further PlayTrack
// during the crossfade fades out whichever voice is current at that
// instant. At most one voice is current and one outgoing; an older
// outgoing voice is torn down on the spot.
func (e *Engine) PlayTrack(asset Asset, elapsedSeconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		log.Debug("playTrack ignored", "state", e.state.String(), "asset", asset.ID)
		return
	}

	params := Derive(asset)
	v := newVoice(e.b, e.master, params, elapsedSeconds)
	v.output.Level().RampLinear(voiceGain, crossfadeTime)

	if e.outgoing != nil {
		e.outgoing.teardown()
		e.outgoing = nil
	}
	if prev := e.current; prev != nil {
		prev.output.Level().RampLinear(0, crossfadeTime)
		e.outgoing = prev
		prev.setFadeTimer(e.b.After(crossfadeTime+teardownGrace, func() {
			prev.teardown()
			e.dropOutgoing(prev)
		}))
	}
	e.current = v

	log.Info("playing track",
		"asset", asset.ID,
		"title", asset.Title,
		"type", params.Type,
		"tempo", params.Tempo,
		"elapsed", elapsedSeconds)
}

// Stop ramps the current voice to silence over 0.3 s and tears it down
// after the usual grace margin. It is a no-op with nothing active.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady || e.current == nil {
		return
	}

	if e.outgoing != nil {
		e.outgoing.teardown()
		e.outgoing = nil
	}

	cur := e.current
	e.current = nil
	e.outgoing = cur
	cur.output.Level().RampLinear(0, stopFadeTime)
	cur.setFadeTimer(e.b.After(stopFadeTime+teardownGrace, func() {
		cur.teardown()
		e.dropOutgoing(cur)
	}))

	log.Info("playback stopped")
}

// Destroy tears down every voice immediately and releases the output
// pipeline. It is irreversible.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return
	}
	if e.state == StateReady {
		if e.current != nil {
			e.current.teardown()
			e.current = nil
		}
		if e.outgoing != nil {
			e.outgoing.teardown()
			e.outgoing = nil
		}
		e.master.Disconnect()
		if err := e.b.Close(); err != nil {
			log.Debug("backend close failed", "err", err)
		}
	}
	e.state = StateDestroyed
	log.Info("engine destroyed")
}

// SetVolume sets the master volume in [0, 1] with a short smoothing ramp.
// While muted the new volume is stored and applied on unmute.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return
	}
	e.volume = math.Max(0, math.Min(1, v))
	e.applyMasterLocked()
}

// SetMuted mutes or unmutes the output. Muting forces the effective gain
// to zero but preserves the stored volume.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return
	}
	e.muted = muted
	e.applyMasterLocked()
}

// Volume returns the stored master volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Muted returns whether output is muted.
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Engine) effectiveGain() float64 {
	if e.muted {
		return 0
	}
	return e.volume
}

func (e *Engine) applyMasterLocked() {
	e.master.Level().RampTarget(e.effectiveGain(), masterTC)
}

// Levels returns approximate left/right meter levels in [0, 1]. There is
// no stereo signal path upstream: the split is a cosmetic simulation that
// halves one mono magnitude spectrum by bin index and averages each half.
func (e *Engine) Levels() (left, right float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return 0, 0
	}
	bins := make([]float64, meterBins)
	e.b.Spectrum(bins)
	half := len(bins) / 2
	return meterAverage(bins[:half]), meterAverage(bins[half:])
}

func meterAverage(bins []float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range bins {
		sum += v
	}
	return math.Min(1, sum/float64(len(bins))*meterScale)
}

func (e *Engine) dropOutgoing(v *Voice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outgoing == v {
		e.outgoing = nil
	}
}

// ChordAtTime returns the chord sounding at an elapsed offset under the
// fixed harmonic rhythm of four beats per chord. It is periodic in the
// chord duration times the progression length, which is what makes a
// mid-track resume land on the musically correct chord.
func ChordAtTime(p Params, elapsedSeconds float64) []int {
	return BuildChord(p.Root, p.Mode, p.Progression[chordIndexAt(p, elapsedSeconds)], buildOctave)
}
