package synth

import (
	"testing"
	"time"

	"github.com/kolradio/synthline/synth/graph"
)

func padParams() Params {
	return Params{Root: 0, Mode: ModeMajor, Tempo: 120, Progression: [4]int{0, 3, 4, 0}, Type: AssetMusic}
}

func buildTestVoice(t *testing.T, m *graph.Mock, p Params, elapsed float64) *Voice {
	t.Helper()
	return newVoice(m, m.Destination(), p, elapsed)
}

func TestPadTopology(t *testing.T) {
	m := graph.NewMock()
	v := buildTestVoice(t, m, padParams(), 0)

	// Three chord notes x (two saws + sub) plus the filter LFO.
	if oscs := m.NodesOfKind("oscillator"); len(oscs) != 10 {
		t.Errorf("pad created %d oscillators, want 10", len(oscs))
	}
	filters := m.NodesOfKind("filter")
	if len(filters) != 1 {
		t.Fatalf("pad created %d filters, want 1", len(filters))
	}
	if filters[0].FilterType != graph.FilterLowpass {
		t.Error("pad filter is not a lowpass")
	}
	if got := filters[0].CutoffParam().Value(); got != padFilterCutoff {
		t.Errorf("pad cutoff = %v, want %v", got, padFilterCutoff)
	}
	if mods := filters[0].CutoffParam().Mods; len(mods) != 1 {
		t.Errorf("pad cutoff has %d modulators, want the LFO depth stage", len(mods))
	}
	if len(v.pads) != 3 {
		t.Errorf("pad tagged %d notes, want 3", len(v.pads))
	}
	// The voice fades in from silence; construction itself must be silent.
	if lvl := v.output.Level().Value(); lvl != 0 {
		t.Errorf("freshly built voice at gain %v, want 0", lvl)
	}
}

func TestBellTopology(t *testing.T) {
	m := graph.NewMock()
	p := padParams()
	p.Type = AssetJingle
	v := buildTestVoice(t, m, p, 0)

	if oscs := m.NodesOfKind("oscillator"); len(oscs) != 6 {
		t.Errorf("bell created %d oscillators, want 6", len(oscs))
	}
	if len(v.bells) != 3 {
		t.Fatalf("bell tagged %d FM pairs, want 3", len(v.bells))
	}
	for i, bell := range v.bells {
		mods := bell.carrier.(*graph.MockNode).FrequencyParam().Mods
		if len(mods) != 1 {
			t.Errorf("carrier %d has %d frequency modulators, want 1", i, len(mods))
		}
		// The static stage must stay static: no automation beyond creation.
		events := bell.modGain.(*graph.MockNode).LevelParam().Events
		if len(events) != 0 {
			t.Errorf("bell %d mod gain has %d automation events at build, want none", i, len(events))
		}
	}
}

func TestSpotTopology(t *testing.T) {
	m := graph.NewMock()
	p := padParams()
	p.Type = AssetSpot
	buildTestVoice(t, m, p, 0)

	noises := m.NodesOfKind("noise")
	if len(noises) != 1 {
		t.Fatalf("spot created %d noise sources, want 1", len(noises))
	}
	if noises[0].LoopLength != spotLoop {
		t.Errorf("noise loop %v, want %v", noises[0].LoopLength, spotLoop)
	}
	if !noises[0].Started {
		t.Error("noise source never started")
	}
	filters := m.NodesOfKind("filter")
	if len(filters) != 1 || filters[0].FilterType != graph.FilterBandpass {
		t.Fatal("spot is missing its bandpass")
	}
	wantCenter := 2 * NoteFrequency(ScaleNoteToMIDI(p.Root, p.Mode, 0, 4))
	if got := filters[0].CutoffParam().Value(); got != wantCenter {
		t.Errorf("bandpass center = %v, want %v", got, wantCenter)
	}
}

func TestDroneTopology(t *testing.T) {
	m := graph.NewMock()
	p := padParams()
	p.Type = AssetShiur
	buildTestVoice(t, m, p, 0)

	if oscs := m.NodesOfKind("oscillator"); len(oscs) != 3 {
		t.Errorf("drone created %d oscillators, want tonic, fifth, and LFO", len(oscs))
	}
	filters := m.NodesOfKind("filter")
	if len(filters) != 1 || filters[0].FilterType != graph.FilterLowpass {
		t.Fatal("drone is missing its lowpass")
	}
	if got := filters[0].CutoffParam().Value(); got != droneLowpass {
		t.Errorf("drone lowpass cutoff = %v, want %v", got, droneLowpass)
	}
}

func TestChimeLayersStrikes(t *testing.T) {
	m := graph.NewMock()
	p := padParams()
	p.Type = AssetZmanim
	p.Tempo = 120 // retrigger every 4 s
	v := buildTestVoice(t, m, p, 0)

	if got := len(m.NodesOfKind("oscillator")); got != 3 {
		t.Fatalf("initial strike created %d oscillators, want 3", got)
	}

	// Each retrigger layers a fresh triad. At any playable tempo the
	// retrigger interval is longer than the 2.6 s strike tail, so the
	// previous strike is silent by then and gets reaped, never cut off.
	m.Advance(4 * time.Second)
	oscs := m.NodesOfKind("oscillator")
	if len(oscs) != 6 {
		t.Fatalf("after one retrigger: %d oscillators created, want 6", len(oscs))
	}
	if !oscs[0].Stopped || !oscs[0].Disconnected {
		t.Error("fully decayed strike was not reaped at the retrigger")
	}
	if oscs[3].Stopped {
		t.Error("fresh strike is already stopped")
	}

	v.teardown()
	for _, n := range m.NodesOfKind("oscillator") {
		if !n.Disconnected {
			t.Error("teardown left a strike oscillator connected")
		}
	}
}

func TestChimeEnvelopeStagger(t *testing.T) {
	m := graph.NewMock()
	p := padParams()
	p.Type = AssetZmanim
	buildTestVoice(t, m, p, 0)

	gains := m.NodesOfKind("gain")
	// gains[0] is the voice output; the strike envelopes follow.
	envs := gains[1:]
	if len(envs) != 3 {
		t.Fatalf("strike has %d envelopes, want 3", len(envs))
	}
	for i, env := range envs {
		events := env.LevelParam().Events
		if len(events) != 3 {
			t.Fatalf("envelope %d has %d events, want setAt+linear+exp", i, len(events))
		}
		if events[0].Op != "setAt" || events[0].Dur != time.Duration(i)*chimeStagger {
			t.Errorf("envelope %d stagger = %v, want %v", i, events[0].Dur, time.Duration(i)*chimeStagger)
		}
		if events[1].Op != "linear" || events[1].Target != chimePeak || events[1].Dur != chimeAttack {
			t.Errorf("envelope %d attack event = %+v", i, events[1])
		}
		if events[2].Op != "exp" || events[2].Dur != chimeDecay {
			t.Errorf("envelope %d decay event = %+v", i, events[2])
		}
	}
}

func TestChordChangeRetunesInPlace(t *testing.T) {
	m := graph.NewMock()
	p := padParams() // tempo 120: one chord every 2 s
	v := buildTestVoice(t, m, p, 0)

	before := len(m.Nodes())
	m.Advance(2 * time.Second)

	if got := len(m.Nodes()); got != before {
		t.Errorf("chord change created %d new nodes, want none", got-before)
	}
	if v.chordPos != 1 {
		t.Errorf("chord position = %d, want 1", v.chordPos)
	}

	chord := BuildChord(p.Root, p.Mode, p.Progression[1], buildOctave)
	for i, pad := range v.pads {
		f := NoteFrequency(chord[i])
		last := pad.saw1.(*graph.MockNode).FrequencyParam().LastEvent()
		if last.Op != "target" {
			t.Fatalf("note %d retuned with %q, want smoothed target ramp", i, last.Op)
		}
		if last.Target != f*padDetuneUp {
			t.Errorf("note %d saw1 retuned to %v, want %v", i, last.Target, f*padDetuneUp)
		}
		if sub := pad.sub.(*graph.MockNode).FrequencyParam().LastEvent(); sub.Target != f/2 {
			t.Errorf("note %d sub retuned to %v, want %v", i, sub.Target, f/2)
		}
	}
}

func TestChordSchedulePhaseAlignment(t *testing.T) {
	m := graph.NewMock()
	p := padParams() // 2 s per chord
	v := buildTestVoice(t, m, p, 4.5)

	// Resuming at 4.5 s: currently on step 2, with 1.5 s left in it.
	if v.chordPos != 2 {
		t.Fatalf("initial chord position = %d, want 2", v.chordPos)
	}
	m.Advance(1400 * time.Millisecond)
	if v.chordPos != 2 {
		t.Error("chord advanced before the grid boundary")
	}
	m.Advance(200 * time.Millisecond)
	if v.chordPos != 3 {
		t.Errorf("chord position after boundary = %d, want 3", v.chordPos)
	}
	m.Advance(2 * time.Second)
	if v.chordPos != 0 {
		t.Errorf("chord position after wrap = %d, want 0", v.chordPos)
	}
}

func TestTeardownIdempotent(t *testing.T) {
	m := graph.NewMock()
	v := buildTestVoice(t, m, padParams(), 0)

	v.teardown()
	v.teardown() // a fired timer and an explicit stop may both arrive

	for _, n := range m.Nodes() {
		if !n.Disconnected {
			t.Error("node left connected after teardown")
		}
		if n.Kind == "oscillator" && n.StopCount != 1 {
			t.Errorf("oscillator stopped %d times, want exactly once", n.StopCount)
		}
	}
	if got := m.PendingTimers(); got != 0 {
		t.Errorf("%d timers still pending after teardown", got)
	}
}

func TestStaleTimerAfterTeardown(t *testing.T) {
	m := graph.NewMock()
	v := buildTestVoice(t, m, padParams(), 0)

	v.teardown()
	// Even if a callback had already been dispatched, it must detect the
	// torn state and no-op rather than touch freed nodes.
	v.advanceChord()
	if v.chordPos != 0 {
		t.Error("stale chord callback mutated a torn-down voice")
	}

	p := padParams()
	p.Type = AssetZmanim
	v2 := buildTestVoice(t, m, p, 0)
	v2.teardown()
	before := len(m.Nodes())
	v2.spawnStrike(m)
	if len(m.Nodes()) != before {
		t.Error("stale chime callback built nodes on a torn-down voice")
	}
}
