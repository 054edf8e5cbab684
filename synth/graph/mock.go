package graph

import (
	"math"
	"sync"
	"time"
)

// Mock is a recording Builder for tests. No audio is produced; instead the
// mock tracks every node, connection, automation event, and timer, and its
// clock only moves when Advance is called, firing due timers in order.
// This mirrors how the production and mock backends pair up for the rest
// of the system.
type Mock struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int64
	dest  *MockNode
	nodes []*MockNode
	timer []*mockTimer

	// SpectrumData is returned by Spectrum, for meter tests.
	SpectrumData []float64

	// Closed reports whether Close was called.
	Closed bool
}

// NewMock creates an empty mock graph.
func NewMock() *Mock {
	m := &Mock{}
	m.dest = &MockNode{m: m, Kind: "destination"}
	return m
}

// MockNode records one created node and implements every node interface.
type MockNode struct {
	m    *Mock
	Kind string // "oscillator", "filter", "gain", "noise", "destination"

	Wave       Waveform
	FilterType FilterKind
	LoopLength time.Duration

	Outs      []*MockNode
	ParamOuts []*MockParam

	Started      bool
	Stopped      bool
	StartCount   int
	StopCount    int
	Disconnected bool

	freq, level, cutoff, q *MockParam
}

// MockParam records automation on one parameter and evaluates ramps
// against the mock clock so tests can assert mid- and post-ramp values.
type MockParam struct {
	m    *Mock
	Name string

	init float64
	segs []seg
	Mods []*MockNode

	// Events lists every automation call in order, for precise assertions.
	Events []MockEvent
}

// MockEvent is one recorded automation call.
type MockEvent struct {
	Op     string // "set", "setAt", "linear", "exp", "target"
	Target float64
	Dur    time.Duration
	At     time.Duration // mock clock time when the call was made
}

type mockTimer struct {
	m         *Mock
	seq       int64
	due       time.Duration
	period    time.Duration
	fn        func()
	cancelled bool
	// Fired counts invocations, Cancelled is sticky.
}

// mockFrameRate converts mock time to virtual frames for shared seg math.
const mockFrameRate = 1e6 // microsecond resolution

func mockFrames(d time.Duration) int64 { return int64(d / time.Microsecond) }

func (m *Mock) newParam(name string, v float64) *MockParam {
	return &MockParam{m: m, Name: name, init: v}
}

func (m *Mock) addNode(n *MockNode) *MockNode {
	m.mu.Lock()
	m.nodes = append(m.nodes, n)
	m.mu.Unlock()
	return n
}

// Oscillator implements Builder.
func (m *Mock) Oscillator(w Waveform, freq float64) Oscillator {
	n := m.addNode(&MockNode{m: m, Kind: "oscillator", Wave: w})
	n.freq = m.newParam("frequency", freq)
	return n
}

// Filter implements Builder.
func (m *Mock) Filter(k FilterKind, cutoff, resonance float64) Filter {
	n := m.addNode(&MockNode{m: m, Kind: "filter", FilterType: k})
	n.cutoff = m.newParam("cutoff", cutoff)
	n.q = m.newParam("resonance", resonance)
	return n
}

// Gain implements Builder.
func (m *Mock) Gain(level float64) Gain {
	n := m.addNode(&MockNode{m: m, Kind: "gain"})
	n.level = m.newParam("level", level)
	return n
}

// Noise implements Builder.
func (m *Mock) Noise(loop time.Duration) Noise {
	return m.addNode(&MockNode{m: m, Kind: "noise", LoopLength: loop})
}

// Destination implements Builder.
func (m *Mock) Destination() Node { return m.dest }

// Now implements Builder.
func (m *Mock) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After implements Builder.
func (m *Mock) After(d time.Duration, fn func()) Timer {
	return m.schedule(d, 0, fn)
}

// Every implements Builder.
func (m *Mock) Every(d time.Duration, fn func()) Timer {
	return m.schedule(d, d, fn)
}

func (m *Mock) schedule(d, period time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &mockTimer{m: m, seq: m.seq, due: m.now + d, period: period, fn: fn}
	m.timer = append(m.timer, t)
	return t
}

// Cancel implements Timer.
func (t *mockTimer) Cancel() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.cancelled = true
}

// Advance moves the mock clock forward, firing every due timer in
// chronological order. Callbacks may schedule further timers; anything
// falling inside the window fires in the same call.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	deadline := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var next *mockTimer
		for _, t := range m.timer {
			if t.cancelled || t.due > deadline {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			m.now = deadline
			m.mu.Unlock()
			return
		}
		m.now = next.due
		if next.period > 0 {
			next.due += next.period
		} else {
			for i, t := range m.timer {
				if t == next {
					m.timer = append(m.timer[:i], m.timer[i+1:]...)
					break
				}
			}
		}
		m.mu.Unlock()

		next.fn()
	}
}

// Spectrum implements Builder.
func (m *Mock) Spectrum(bins []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range bins {
		if i < len(m.SpectrumData) {
			bins[i] = m.SpectrumData[i]
		} else {
			bins[i] = 0
		}
	}
}

// Close implements Builder.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Nodes returns every node created so far.
func (m *Mock) Nodes() []*MockNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockNode, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// NodesOfKind returns created nodes of one kind, in creation order.
func (m *Mock) NodesOfKind(kind string) []*MockNode {
	var out []*MockNode
	for _, n := range m.Nodes() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// PendingTimers returns the number of live scheduled timers.
func (m *Mock) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.timer {
		if !t.cancelled {
			count++
		}
	}
	return count
}

// Connect implements Node.
func (n *MockNode) Connect(dst Node) {
	d, ok := dst.(*MockNode)
	if !ok {
		return
	}
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	n.Outs = append(n.Outs, d)
}

// ConnectParam implements Node.
func (n *MockNode) ConnectParam(p Param) {
	mp, ok := p.(*MockParam)
	if !ok {
		return
	}
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	n.ParamOuts = append(n.ParamOuts, mp)
	mp.Mods = append(mp.Mods, n)
}

// Disconnect implements Node.
func (n *MockNode) Disconnect() {
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	n.Disconnected = true
	n.Outs = nil
	n.ParamOuts = nil
}

// Start implements Oscillator and Noise.
func (n *MockNode) Start() {
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	n.Started = true
	n.StartCount++
}

// Stop implements Oscillator and Noise.
func (n *MockNode) Stop() {
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	n.Stopped = true
	n.StopCount++
}

// Frequency implements Oscillator.
func (n *MockNode) Frequency() Param { return n.freq }

// Cutoff implements Filter.
func (n *MockNode) Cutoff() Param { return n.cutoff }

// Resonance implements Filter.
func (n *MockNode) Resonance() Param { return n.q }

// Level implements Gain.
func (n *MockNode) Level() Param { return n.level }

// FrequencyParam exposes the frequency record for assertions.
func (n *MockNode) FrequencyParam() *MockParam { return n.freq }

// LevelParam exposes the level record for assertions.
func (n *MockNode) LevelParam() *MockParam { return n.level }

// CutoffParam exposes the cutoff record for assertions.
func (n *MockNode) CutoffParam() *MockParam { return n.cutoff }

// valueAt evaluates the automation queue at a mock time, using the same
// segment math as the renderer but with a microsecond virtual frame.
func (p *MockParam) valueAt(at time.Duration) float64 {
	frame := mockFrames(at)
	v := p.init
	for i := range p.segs {
		s := &p.segs[i]
		if frame < s.start {
			break
		}
		if frame >= s.end && s.kind != segTarget {
			v = s.to
			continue
		}
		switch s.kind {
		case segSet:
			v = s.to
		case segLinear:
			frac := float64(frame-s.start) / float64(s.end-s.start)
			v = s.from + (s.to-s.from)*frac
		case segExp:
			from := s.from
			if math.Abs(from) < minExpValue {
				from = math.Copysign(minExpValue, s.to)
			}
			frac := float64(frame-s.start) / float64(s.end-s.start)
			v = from * math.Pow(s.to/from, frac)
		case segTarget:
			dt := float64(frame-s.start) / mockFrameRate
			v = s.to + (s.from-s.to)*math.Exp(-dt/s.tc)
		}
	}
	return v
}

func (p *MockParam) tail() (int64, float64) {
	now := mockFrames(p.m.now)
	if len(p.segs) == 0 {
		return now, p.valueAt(p.m.now)
	}
	last := p.segs[len(p.segs)-1]
	at := last.end
	if last.kind == segTarget || at < now {
		at = max64(last.start, now)
	}
	return at, p.valueAt(time.Duration(at) * time.Microsecond)
}

// Value implements Param.
func (p *MockParam) Value() float64 {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	return p.valueAt(p.m.now)
}

// Set implements Param.
func (p *MockParam) Set(v float64) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	p.init = v
	p.segs = nil
	p.Events = append(p.Events, MockEvent{Op: "set", Target: v, At: p.m.now})
}

// SetAt implements Param.
func (p *MockParam) SetAt(v float64, delay time.Duration) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	at := mockFrames(p.m.now + delay)
	tailAt, _ := p.tail()
	at = max64(at, tailAt)
	p.segs = append(p.segs, seg{kind: segSet, start: at, end: at, to: v})
	p.Events = append(p.Events, MockEvent{Op: "setAt", Target: v, Dur: delay, At: p.m.now})
}

// RampLinear implements Param.
func (p *MockParam) RampLinear(target float64, d time.Duration) {
	p.appendRamp("linear", segLinear, target, d, 0)
}

// RampExp implements Param.
func (p *MockParam) RampExp(target float64, d time.Duration) {
	p.appendRamp("exp", segExp, target, d, 0)
}

// RampTarget implements Param.
func (p *MockParam) RampTarget(target float64, timeConstant time.Duration) {
	p.appendRamp("target", segTarget, target, timeConstant, timeConstant.Seconds())
}

func (p *MockParam) appendRamp(op string, kind segKind, target float64, d time.Duration, tc float64) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	start, from := p.tail()
	s := seg{kind: kind, start: start, from: from, to: target, tc: tc}
	if kind == segTarget {
		s.end = math.MaxInt64
	} else {
		s.end = start + mockFrames(d)
		if s.end <= s.start {
			s.kind = segSet
			s.end = s.start
		}
	}
	p.segs = append(p.segs, s)
	p.Events = append(p.Events, MockEvent{Op: op, Target: target, Dur: d, At: p.m.now})
}

// LastEvent returns the most recent automation call, or a zero event.
func (p *MockParam) LastEvent() MockEvent {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if len(p.Events) == 0 {
		return MockEvent{}
	}
	return p.Events[len(p.Events)-1]
}

// EventsOf returns recorded events of one op, in order.
func (p *MockParam) EventsOf(op string) []MockEvent {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	var out []MockEvent
	for _, e := range p.Events {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}
