package synth

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kolradio/synthline/synth/graph"
)

func newTestEngine(t *testing.T) (*Engine, *graph.Mock) {
	t.Helper()
	m := graph.NewMock()
	e := NewEngine(Config{Builder: m})
	if err := e.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return e, m
}

// outputGain returns the output gain of the i-th voice built on the mock.
// The engine's master gain is always the first gain created; each voice
// creates its output gain before any other node.
func outputGain(t *testing.T, m *graph.Mock, gainIndex int) *graph.MockNode {
	t.Helper()
	gains := m.NodesOfKind("gain")
	if gainIndex >= len(gains) {
		t.Fatalf("gain %d not created (have %d)", gainIndex, len(gains))
	}
	return gains[gainIndex]
}

func TestInitKeepsDeviceErrorUnwrappable(t *testing.T) {
	// No Builder configured, so Init opens a real device; the bad sample
	// rate fails before any hardware is touched.
	e := NewEngine(Config{SampleRate: 22050})
	err := e.Init()
	if !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("Init error = %v, want ErrAudioUnavailable", err)
	}
	wrapped, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("device error flattened out of the chain: %v", err)
	}
	found := false
	for _, c := range wrapped.Unwrap() {
		if !errors.Is(c, ErrAudioUnavailable) && strings.Contains(c.Error(), "22050") {
			found = true
		}
	}
	if !found {
		t.Errorf("underlying device error not in the chain: %v", wrapped.Unwrap())
	}
}

func TestInitIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if !e.Ready() {
		t.Error("engine not ready after Init")
	}
}

func TestOperationsBeforeInitAreNoOps(t *testing.T) {
	e := NewEngine(Config{Builder: graph.NewMock()})

	// None of these may panic or raise; they silently do nothing.
	e.PlayTrack(testAsset(), 0)
	e.Stop()
	e.SetVolume(0.5)
	e.SetMuted(true)
	if l, r := e.Levels(); l != 0 || r != 0 {
		t.Errorf("Levels before init = %v, %v, want 0, 0", l, r)
	}
	if e.Ready() {
		t.Error("engine ready without Init")
	}
}

func TestInitAfterDestroyFails(t *testing.T) {
	e, m := newTestEngine(t)
	e.Destroy()
	if !m.Closed {
		t.Error("backend not closed on destroy")
	}
	if err := e.Init(); err != ErrEngineDestroyed {
		t.Errorf("Init after destroy = %v, want ErrEngineDestroyed", err)
	}
	if e.State() != StateDestroyed {
		t.Error("destroy is not terminal")
	}
}

func TestPlayTrackFadesIn(t *testing.T) {
	e, m := newTestEngine(t)
	e.PlayTrack(testAsset(), 0)

	out := outputGain(t, m, 1)
	ev := out.LevelParam().LastEvent()
	if ev.Op != "linear" || ev.Target != voiceGain || ev.Dur != crossfadeTime {
		t.Fatalf("fade-in event = %+v, want linear to %v over %v", ev, voiceGain, crossfadeTime)
	}

	m.Advance(crossfadeTime)
	if got := out.LevelParam().Value(); math.Abs(got-voiceGain) > 1e-9 {
		t.Errorf("voice gain after crossfade = %v, want %v", got, voiceGain)
	}
}

func TestCrossfade(t *testing.T) {
	e, m := newTestEngine(t)
	e.PlayTrack(testAsset(), 0)
	m.Advance(5 * time.Second)

	firstNodes := m.Nodes()
	firstOut := outputGain(t, m, 1)
	gainsBefore := len(m.NodesOfKind("gain"))

	b := testAsset()
	b.ID = "a2"
	e.PlayTrack(b, 0)

	secondOut := outputGain(t, m, gainsBefore)

	// Fade-in and fade-out are scheduled in the same tick.
	in := secondOut.LevelParam().LastEvent()
	out := firstOut.LevelParam().LastEvent()
	if in.Op != "linear" || in.Target != voiceGain {
		t.Fatalf("incoming fade = %+v", in)
	}
	if out.Op != "linear" || out.Target != 0 || out.Dur != crossfadeTime {
		t.Fatalf("outgoing fade = %+v", out)
	}
	if in.At != out.At {
		t.Error("crossfade ramps were not scheduled atomically")
	}

	// After the window: exactly one voice at steady gain.
	m.Advance(crossfadeTime)
	if got := secondOut.LevelParam().Value(); math.Abs(got-voiceGain) > 1e-9 {
		t.Errorf("incoming gain = %v, want %v", got, voiceGain)
	}
	if got := firstOut.LevelParam().Value(); got != 0 {
		t.Errorf("outgoing gain = %v, want 0", got)
	}

	// And 200 ms later the outgoing voice is fully torn down.
	m.Advance(teardownGrace)
	for _, n := range firstNodes[1:] { // skip the master gain
		if !n.Disconnected {
			t.Fatal("outgoing voice still connected past the teardown point")
		}
	}
	if secondOut.Disconnected {
		t.Error("current voice was torn down with the outgoing one")
	}
}

func TestPlayTrackDuringCrossfade(t *testing.T) {
	e, m := newTestEngine(t)
	a := testAsset()
	e.PlayTrack(a, 0)

	b := a
	b.ID = "a2"
	m.Advance(3 * time.Second)
	firstOut := outputGain(t, m, 1)
	gains := len(m.NodesOfKind("gain"))
	e.PlayTrack(b, 0)
	secondOut := outputGain(t, m, gains)

	// Mid-crossfade, start a third track: the first (older outgoing)
	// voice is torn down immediately, and the second (current at that
	// instant) fades out.
	c := a
	c.ID = "a3"
	m.Advance(500 * time.Millisecond)
	e.PlayTrack(c, 0)

	if !firstOut.Disconnected {
		t.Error("older outgoing voice was not torn down when displaced")
	}
	ev := secondOut.LevelParam().LastEvent()
	if ev.Op != "linear" || ev.Target != 0 {
		t.Errorf("displaced current voice fade = %+v, want ramp to 0", ev)
	}

	m.Advance(crossfadeTime + teardownGrace)
	if !secondOut.Disconnected {
		t.Error("displaced voice never torn down")
	}
}

func TestStop(t *testing.T) {
	e, m := newTestEngine(t)
	e.Stop() // nothing active: no-op

	e.PlayTrack(testAsset(), 0)
	m.Advance(2 * time.Second)
	out := outputGain(t, m, 1)

	e.Stop()
	ev := out.LevelParam().LastEvent()
	if ev.Op != "linear" || ev.Target != 0 || ev.Dur != stopFadeTime {
		t.Fatalf("stop fade = %+v, want linear to 0 over %v", ev, stopFadeTime)
	}

	m.Advance(stopFadeTime + teardownGrace)
	if !out.Disconnected {
		t.Error("voice not torn down after stop grace")
	}

	e.Stop() // idempotent
}

func TestStopThenPlayDoesNotDoubleTeardown(t *testing.T) {
	e, m := newTestEngine(t)
	e.PlayTrack(testAsset(), 0)
	m.Advance(2 * time.Second)
	first := outputGain(t, m, 1)

	e.Stop()
	b := testAsset()
	b.ID = "a2"
	e.PlayTrack(b, 0) // stopping voice is displaced and torn down now

	if !first.Disconnected {
		t.Error("stopping voice not released when a new track started")
	}
	m.Advance(5 * time.Second) // the stale stop timer must no-op safely
	oscs := m.NodesOfKind("oscillator")
	stopped := 0
	for _, o := range oscs {
		if o.StopCount > 1 {
			stopped++
		}
	}
	if stopped != 0 {
		t.Errorf("%d oscillators double-stopped", stopped)
	}
}

func TestDestroyTearsDownEverything(t *testing.T) {
	e, m := newTestEngine(t)
	a := testAsset()
	e.PlayTrack(a, 0)
	b := a
	b.ID = "a2"
	m.Advance(time.Second)
	e.PlayTrack(b, 0) // crossfade in flight

	e.Destroy()
	for _, n := range m.Nodes() {
		if !n.Disconnected {
			t.Error("node still connected after destroy")
		}
	}
	if !m.Closed {
		t.Error("backend not closed")
	}
	if got := m.PendingTimers(); got != 0 {
		t.Errorf("%d timers alive after destroy", got)
	}

	// Post-destroy operations are silent no-ops.
	e.PlayTrack(a, 0)
	e.Stop()
	e.Destroy()
}

func TestVolumeAndMuteOrdering(t *testing.T) {
	e, m := newTestEngine(t)
	master := outputGain(t, m, 0)

	e.SetMuted(true)
	e.SetVolume(0.9)
	e.SetMuted(false)

	// Converges to the stored volume, never to zero or the pre-mute value.
	m.Advance(time.Second)
	if got := master.LevelParam().Value(); math.Abs(got-0.9) > 1e-6 {
		t.Errorf("effective gain = %v, want 0.9", got)
	}
	if e.Volume() != 0.9 || e.Muted() {
		t.Errorf("stored volume = %v muted = %v", e.Volume(), e.Muted())
	}
}

func TestMutePreservesVolume(t *testing.T) {
	e, m := newTestEngine(t)
	master := outputGain(t, m, 0)

	e.SetVolume(0.6)
	e.SetMuted(true)
	m.Advance(time.Second)
	if got := master.LevelParam().Value(); math.Abs(got) > 1e-6 {
		t.Errorf("muted gain = %v, want 0", got)
	}

	e.SetMuted(false)
	m.Advance(time.Second)
	if got := master.LevelParam().Value(); math.Abs(got-0.6) > 1e-6 {
		t.Errorf("unmuted gain = %v, want 0.6", got)
	}
}

func TestVolumeClamped(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetVolume(1.7)
	if e.Volume() != 1 {
		t.Errorf("volume = %v, want clamp to 1", e.Volume())
	}
	e.SetVolume(-2)
	if e.Volume() != 0 {
		t.Errorf("volume = %v, want clamp to 0", e.Volume())
	}
}

func TestLevels(t *testing.T) {
	e, m := newTestEngine(t)
	data := make([]float64, meterBins)
	for i := range data {
		if i < meterBins/2 {
			data[i] = 0.5
		} else {
			data[i] = 0.25
		}
	}
	m.SpectrumData = data

	left, right := e.Levels()
	if math.Abs(left-math.Min(1, 0.5*meterScale)) > 1e-9 {
		t.Errorf("left = %v", left)
	}
	if math.Abs(right-math.Min(1, 0.25*meterScale)) > 1e-9 {
		t.Errorf("right = %v", right)
	}
	if left < right {
		t.Error("halves swapped")
	}
}
