package synth

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kolradio/synthline/synth/graph"
)

// Synthesis constants. These define the sound of the station and are not
// configurable.
const (
	voiceGain     = 0.35                   // steady-state voice level
	crossfadeTime = 1500 * time.Millisecond // fade-in / fade-out window
	teardownGrace = 200 * time.Millisecond  // margin past a fade before teardown
	retuneTC      = 100 * time.Millisecond  // chord-change smoothing
	buildOctave   = 3                       // octave for pad/bell chords

	padDetuneUp     = 1.003
	padDetuneDown   = 0.997
	padSawGain      = 0.15
	padSubGain      = 0.2
	padFilterCutoff = 800.0
	padFilterQ      = 1.0
	padLFORate      = 0.3
	padLFODepth     = 200.0

	bellModRatio = 3.5  // modulator frequency as a multiple of the carrier
	bellModIndex = 2.0  // modulation depth as a multiple of the carrier, in Hz
	bellGain     = 0.12 // static stage; the legacy bell has no envelope

	spotLoop     = 2 * time.Second
	spotQ        = 8.0
	spotLFORate  = 0.5
	spotLFODepth = 0.5 // fraction of the center frequency

	droneTonicGain = 0.5
	droneFifthGain = 0.25
	droneTremRate  = 0.15
	droneTremDepth = 0.06
	droneLowpass   = 400.0

	chimeOctave  = 5
	chimePeak    = 0.3
	chimeStagger = 150 * time.Millisecond
	chimeAttack  = 10 * time.Millisecond
	chimeDecay   = 2 * time.Second
	chimeTail    = 2600 * time.Millisecond // strike fully silent by here
)

// padNote tags the oscillators of one pad chord note by structural role,
// so chord changes retune them in place instead of sniffing node types.
type padNote struct {
	saw1 graph.Oscillator
	saw2 graph.Oscillator
	sub  graph.Oscillator
}

// bellNote tags one FM pair of the bell voice.
type bellNote struct {
	carrier   graph.Oscillator
	modulator graph.Oscillator
	modGain   graph.Gain
}

// strike is one decaying chime triad, reaped once its tail has passed.
type strike struct {
	nodes    []graph.Node
	deadline time.Duration
}

// Voice is one complete synthesized-program instance: an owned node set,
// a dedicated output gain, and the timers that retune or retrigger it.
// A voice is created silent; the engine ramps it in. Teardown is
// idempotent and cancels every owned timer exactly once.
type Voice struct {
	mu     sync.Mutex
	params Params

	output  graph.Gain
	nodes   []graph.Node
	pads    []padNote
	bells   []bellNote
	strikes []strike

	chordTimer graph.Timer
	chimeTimer graph.Timer
	fadeTimer  graph.Timer

	chordPos int
	torn     bool
}

// newVoice builds the topology for the asset type into a fresh voice
// rooted at dst, positioned at the given elapsed offset so mid-track
// resumes land on the right chord, and attaches its retune or retrigger
// timer. The voice starts at gain zero.
func newVoice(b graph.Builder, dst graph.Node, p Params, elapsed float64) *Voice {
	v := &Voice{params: p}
	v.output = b.Gain(0)
	v.output.Connect(dst)

	spc := p.SecondsPerChord()
	v.chordPos = chordIndexAt(p, elapsed)
	chord := BuildChord(p.Root, p.Mode, p.Progression[v.chordPos], buildOctave)

	switch p.Type {
	case AssetJingle:
		v.buildBell(b, chord)
		v.scheduleChordChanges(b, elapsed, spc)
	case AssetSpot:
		v.buildSpot(b, p)
	case AssetShiur:
		v.buildDrone(b, p)
	case AssetZmanim:
		v.spawnStrike(b)
		v.scheduleChimes(b, elapsed)
	default:
		v.buildPad(b, chord)
		v.scheduleChordChanges(b, elapsed, spc)
	}

	log.Debug("voice built",
		"type", p.Type,
		"root", p.Root,
		"mode", p.Mode.String(),
		"tempo", p.Tempo,
		"chord", v.chordPos)
	return v
}

func (v *Voice) track(nodes ...graph.Node) {
	v.nodes = append(v.nodes, nodes...)
}

// buildPad: per chord note, two detuned sawtooths plus a sine sub an
// octave down, each attenuated, summed through a shared lowpass whose
// cutoff a slow sine LFO sweeps.
func (v *Voice) buildPad(b graph.Builder, chord []int) {
	filter := b.Filter(graph.FilterLowpass, padFilterCutoff, padFilterQ)
	filter.Connect(v.output)
	v.track(filter)

	for _, midi := range chord {
		f := NoteFrequency(midi)

		saw1 := b.Oscillator(graph.WaveSawtooth, f*padDetuneUp)
		saw2 := b.Oscillator(graph.WaveSawtooth, f*padDetuneDown)
		sub := b.Oscillator(graph.WaveSine, f/2)

		for _, osc := range []graph.Oscillator{saw1, saw2} {
			g := b.Gain(padSawGain)
			osc.Connect(g)
			g.Connect(filter)
			osc.Start()
			v.track(osc, g)
		}
		subGain := b.Gain(padSubGain)
		sub.Connect(subGain)
		subGain.Connect(filter)
		sub.Start()
		v.track(sub, subGain)

		v.pads = append(v.pads, padNote{saw1: saw1, saw2: saw2, sub: sub})
	}

	lfo := b.Oscillator(graph.WaveSine, padLFORate)
	depth := b.Gain(padLFODepth)
	lfo.Connect(depth)
	depth.ConnectParam(filter.Cutoff())
	lfo.Start()
	v.track(lfo, depth)
}

// buildBell: per chord note, a two-operator FM pair with a static output
// stage. The missing attack/decay envelope is deliberate; it reproduces
// the legacy bell sound exactly.
func (v *Voice) buildBell(b graph.Builder, chord []int) {
	for _, midi := range chord {
		f := NoteFrequency(midi)

		carrier := b.Oscillator(graph.WaveSine, f)
		modulator := b.Oscillator(graph.WaveSine, f*bellModRatio)
		modGain := b.Gain(f * bellModIndex)
		modulator.Connect(modGain)
		modGain.ConnectParam(carrier.Frequency())

		out := b.Gain(bellGain)
		carrier.Connect(out)
		out.Connect(v.output)

		carrier.Start()
		modulator.Start()
		v.track(carrier, modulator, modGain, out)
		v.bells = append(v.bells, bellNote{carrier: carrier, modulator: modulator, modGain: modGain})
	}
}

// buildSpot: a looping white-noise buffer through a high-Q bandpass
// centered at twice the tonic, the center swept by a slow LFO.
func (v *Voice) buildSpot(b graph.Builder, p Params) {
	center := 2 * NoteFrequency(ScaleNoteToMIDI(p.Root, p.Mode, 0, 4))

	noise := b.Noise(spotLoop)
	band := b.Filter(graph.FilterBandpass, center, spotQ)
	noise.Connect(band)
	band.Connect(v.output)

	lfo := b.Oscillator(graph.WaveSine, spotLFORate)
	depth := b.Gain(center * spotLFODepth)
	lfo.Connect(depth)
	depth.ConnectParam(band.Cutoff())

	noise.Start()
	lfo.Start()
	v.track(noise, band, lfo, depth)
}

// buildDrone: tonic sine plus a quieter perfect fifth, tremolo-modulated
// and lowpassed.
func (v *Voice) buildDrone(b graph.Builder, p Params) {
	tonicMIDI := ScaleNoteToMIDI(p.Root, p.Mode, 0, 3)

	tonic := b.Oscillator(graph.WaveSine, NoteFrequency(tonicMIDI))
	tonicGain := b.Gain(droneTonicGain)
	tonic.Connect(tonicGain)

	fifth := b.Oscillator(graph.WaveSine, NoteFrequency(tonicMIDI+7))
	fifthGain := b.Gain(droneFifthGain)
	fifth.Connect(fifthGain)

	trem := b.Gain(1)
	tonicGain.Connect(trem)
	fifthGain.Connect(trem)

	lfo := b.Oscillator(graph.WaveSine, droneTremRate)
	depth := b.Gain(droneTremDepth)
	lfo.Connect(depth)
	depth.ConnectParam(trem.Level())

	low := b.Filter(graph.FilterLowpass, droneLowpass, 0.707)
	trem.Connect(low)
	low.Connect(v.output)

	tonic.Start()
	fifth.Start()
	lfo.Start()
	v.track(tonic, tonicGain, fifth, fifthGain, trem, lfo, depth, low)
}

// spawnStrike layers a fresh chime triad: tonic triad at octave 5, notes
// staggered by 150 ms, each with a 10 ms linear attack and a 2 s
// exponential decay toward silence. Previous strikes keep decaying;
// strikes past their tail are reaped here rather than by per-note timers,
// keeping timer ownership to one handle per voice.
func (v *Voice) spawnStrike(b graph.Builder) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.torn {
		return
	}

	now := b.Now()
	kept := v.strikes[:0]
	for _, s := range v.strikes {
		if now >= s.deadline {
			releaseNodes(s.nodes)
			continue
		}
		kept = append(kept, s)
	}
	v.strikes = kept

	chord := BuildChord(v.params.Root, v.params.Mode, 0, chimeOctave)
	s := strike{deadline: now + time.Duration(len(chord)-1)*chimeStagger + chimeTail}
	for i, midi := range chord {
		osc := b.Oscillator(graph.WaveSine, NoteFrequency(midi))
		env := b.Gain(0)
		osc.Connect(env)
		env.Connect(v.output)

		level := env.Level()
		level.SetAt(0, time.Duration(i)*chimeStagger)
		level.RampLinear(chimePeak, chimeAttack)
		level.RampExp(1e-4, chimeDecay)

		osc.Start()
		s.nodes = append(s.nodes, osc, env)
	}
	v.strikes = append(v.strikes, s)
}

// scheduleChordChanges arms the chord-change timer: one shot to align
// with the harmonic grid given the elapsed offset, then repeating every
// chord duration. Firings retune the existing oscillators in place, so
// sound is continuous across chord changes.
func (v *Voice) scheduleChordChanges(b graph.Builder, elapsed, spc float64) {
	initial := spc - math.Mod(elapsed, spc)
	period := secs(spc)
	v.chordTimer = b.After(secs(initial), func() {
		v.mu.Lock()
		if v.torn {
			v.mu.Unlock()
			return
		}
		v.chordTimer = b.Every(period, v.advanceChord)
		v.mu.Unlock()
		v.advanceChord()
	})
}

// scheduleChimes arms the chime retrigger timer, phase-aligned so a
// resumed track strikes on the same grid it would have live.
func (v *Voice) scheduleChimes(b graph.Builder, elapsed float64) {
	interval := 8 * 60 / float64(v.params.Tempo)
	initial := interval - math.Mod(elapsed, interval)
	period := secs(interval)
	v.chimeTimer = b.After(secs(initial), func() {
		v.mu.Lock()
		if v.torn {
			v.mu.Unlock()
			return
		}
		v.chimeTimer = b.Every(period, func() { v.spawnStrike(b) })
		v.mu.Unlock()
		v.spawnStrike(b)
	})
}

// advanceChord moves to the next progression step and retunes every
// tagged oscillator with a short smoothing ramp. A firing against a torn
// down voice is a stale-callback race and no-ops.
func (v *Voice) advanceChord() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.torn {
		return
	}

	v.chordPos = (v.chordPos + 1) % len(v.params.Progression)
	chord := BuildChord(v.params.Root, v.params.Mode, v.params.Progression[v.chordPos], buildOctave)

	for i, pad := range v.pads {
		if i >= len(chord) {
			break
		}
		f := NoteFrequency(chord[i])
		pad.saw1.Frequency().RampTarget(f*padDetuneUp, retuneTC)
		pad.saw2.Frequency().RampTarget(f*padDetuneDown, retuneTC)
		pad.sub.Frequency().RampTarget(f/2, retuneTC)
	}
	for i, bell := range v.bells {
		if i >= len(chord) {
			break
		}
		f := NoteFrequency(chord[i])
		bell.carrier.Frequency().RampTarget(f, retuneTC)
		bell.modulator.Frequency().RampTarget(f*bellModRatio, retuneTC)
		bell.modGain.Level().RampTarget(f*bellModIndex, retuneTC)
	}
}

// setFadeTimer records the engine-scheduled teardown timer so teardown
// can cancel it.
func (v *Voice) setFadeTimer(t graph.Timer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.torn {
		t.Cancel()
		return
	}
	v.fadeTimer = t
}

// teardown stops and disconnects every owned node and cancels every owned
// timer. It is idempotent: a second call, whether from a fired timer or an
// explicit stop, does nothing.
func (v *Voice) teardown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.torn {
		return
	}
	v.torn = true

	for _, t := range []graph.Timer{v.chordTimer, v.chimeTimer, v.fadeTimer} {
		if t != nil {
			t.Cancel()
		}
	}
	v.chordTimer, v.chimeTimer, v.fadeTimer = nil, nil, nil

	releaseNodes(v.nodes)
	for _, s := range v.strikes {
		releaseNodes(s.nodes)
	}
	v.nodes = nil
	v.strikes = nil
	v.output.Disconnect()

	log.Debug("voice torn down", "type", v.params.Type)
}

// releaseNodes stops any source nodes and severs all connections. The
// underlying primitives treat repeated stop/disconnect as already cleaned
// up, so racing a teardown never propagates an error.
func releaseNodes(nodes []graph.Node) {
	for _, n := range nodes {
		if s, ok := n.(interface{ Stop() }); ok {
			s.Stop()
		}
		n.Disconnect()
	}
}

// chordIndexAt returns the progression index sounding at the elapsed
// offset.
func chordIndexAt(p Params, elapsed float64) int {
	spc := p.SecondsPerChord()
	idx := int(math.Floor(elapsed/spc)) % len(p.Progression)
	if idx < 0 {
		idx += len(p.Progression)
	}
	return idx
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
