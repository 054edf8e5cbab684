package graph

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// renderBlockSize is the number of frames rendered per pull. Timers fire on
// block boundaries, which bounds scheduling jitter to ~6 ms at 44.1 kHz.
const renderBlockSize = 256

// minExpValue is the floor for exponential ramps; a true zero would stall
// the curve.
const minExpValue = 1e-4

// spectrumWindow is the number of recent frames the spectrum tap analyzes.
// A single block is shorter than one cycle of the lowest probe frequency,
// so four blocks are kept to give the Goertzel probes usable resolution.
const spectrumWindow = 4 * renderBlockSize

// Renderer is the software synthesis backend. It renders the graph in
// blocks on demand, advancing one logical timeline that drives both sample
// production and timer dispatch. All mutation serializes on the renderer
// lock; timer callbacks run with the lock released so they can build and
// schedule freely.
type Renderer struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	dest       *node
	timers     []*rtimer
	timerSeq   int64
	last       []float64
	closed     bool
}

// NewRenderer creates a renderer with an empty graph.
func NewRenderer(sampleRate int) *Renderer {
	r := &Renderer{
		sampleRate: sampleRate,
		last:       make([]float64, spectrumWindow),
	}
	r.dest = &node{r: r, kind: kindSum, buf: make([]float64, renderBlockSize), done: -1}
	return r
}

// SampleRate returns the renderer's sample rate.
func (r *Renderer) SampleRate() int { return r.sampleRate }

type nodeKind int

const (
	kindSum nodeKind = iota
	kindOsc
	kindGain
	kindFilter
	kindNoise
)

// node is the single concrete processing element; thin wrapper types
// expose only the interface each kind supports.
type node struct {
	r    *Renderer
	kind nodeKind

	ins       []*node
	outs      []*node
	paramOuts []*param

	buf  []float64
	done int64 // block start frame of the most recent render, -1 initially

	// oscillator
	wave    Waveform
	phase   float64
	started bool
	stopped bool
	freq    *param

	// gain
	level *param

	// filter
	fkind          FilterKind
	cutoff, q      *param
	x1, x2, y1, y2 float64

	// noise
	loop   []float64
	cursor int
}

type unwrapper interface{ raw() *node }

func (n *node) raw() *node { return n }

// Connect implements Node.
func (n *node) Connect(dst Node) {
	u, ok := dst.(unwrapper)
	if !ok {
		return
	}
	d := u.raw()
	n.r.mu.Lock()
	defer n.r.mu.Unlock()
	n.outs = append(n.outs, d)
	d.ins = append(d.ins, n)
}

// ConnectParam implements Node.
func (n *node) ConnectParam(p Param) {
	rp, ok := p.(*param)
	if !ok {
		return
	}
	n.r.mu.Lock()
	defer n.r.mu.Unlock()
	n.paramOuts = append(n.paramOuts, rp)
	rp.mods = append(rp.mods, n)
}

// Disconnect implements Node. Severs all audio and parameter routes; safe
// to call more than once.
func (n *node) Disconnect() {
	n.r.mu.Lock()
	defer n.r.mu.Unlock()
	for _, d := range n.outs {
		for i, in := range d.ins {
			if in == n {
				d.ins = append(d.ins[:i], d.ins[i+1:]...)
				break
			}
		}
	}
	for _, p := range n.paramOuts {
		for i, m := range p.mods {
			if m == n {
				p.mods = append(p.mods[:i], p.mods[i+1:]...)
				break
			}
		}
	}
	n.outs = nil
	n.paramOuts = nil
}

// render fills n.buf for the block starting at blockStart. Sources feeding
// parameters render before the consumer so modulation is sample-accurate
// within the block.
func (n *node) render(blockStart int64) {
	if n.done == blockStart {
		return
	}
	n.done = blockStart

	for _, p := range []*param{n.freq, n.level, n.cutoff, n.q} {
		if p == nil {
			continue
		}
		for _, m := range p.mods {
			m.render(blockStart)
		}
	}
	for _, in := range n.ins {
		in.render(blockStart)
	}

	switch n.kind {
	case kindSum:
		n.renderSum()
	case kindOsc:
		n.renderOsc(blockStart)
	case kindGain:
		n.renderGain(blockStart)
	case kindFilter:
		n.renderFilter(blockStart)
	case kindNoise:
		n.renderNoise()
	}
}

func (n *node) renderSum() {
	for i := range n.buf {
		n.buf[i] = 0
	}
	for _, in := range n.ins {
		for i, v := range in.buf {
			n.buf[i] += v
		}
	}
}

func (n *node) renderOsc(blockStart int64) {
	sr := float64(n.r.sampleRate)
	for i := range n.buf {
		if !n.started || n.stopped {
			n.buf[i] = 0
			continue
		}
		f := n.freq.sample(blockStart+int64(i), i)
		n.phase += f / sr
		n.phase -= math.Floor(n.phase)
		switch n.wave {
		case WaveSawtooth:
			n.buf[i] = 2*n.phase - 1
		default:
			n.buf[i] = math.Sin(2 * math.Pi * n.phase)
		}
	}
}

func (n *node) renderGain(blockStart int64) {
	for i := range n.buf {
		sum := 0.0
		for _, in := range n.ins {
			sum += in.buf[i]
		}
		n.buf[i] = sum * n.level.sample(blockStart+int64(i), i)
	}
}

func (n *node) renderFilter(blockStart int64) {
	sr := float64(n.r.sampleRate)
	fc := n.cutoff.sample(blockStart, 0)
	fc = math.Max(10, math.Min(fc, 0.45*sr))
	q := math.Max(0.05, n.q.sample(blockStart, 0))

	w := 2 * math.Pi * fc / sr
	sinw, cosw := math.Sin(w), math.Cos(w)
	alpha := sinw / (2 * q)

	var b0, b1, b2 float64
	switch n.fkind {
	case FilterBandpass:
		b0, b1, b2 = alpha, 0, -alpha
	default:
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
	}
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha
	b0, b1, b2, a1, a2 = b0/a0, b1/a0, b2/a0, a1/a0, a2/a0

	for i := range n.buf {
		x := 0.0
		for _, in := range n.ins {
			x += in.buf[i]
		}
		y := b0*x + b1*n.x1 + b2*n.x2 - a1*n.y1 - a2*n.y2
		n.x2, n.x1 = n.x1, x
		n.y2, n.y1 = n.y1, y
		n.buf[i] = y
	}
}

func (n *node) renderNoise() {
	for i := range n.buf {
		if !n.started || n.stopped || len(n.loop) == 0 {
			n.buf[i] = 0
			continue
		}
		n.buf[i] = n.loop[n.cursor]
		n.cursor++
		if n.cursor >= len(n.loop) {
			n.cursor = 0
		}
	}
}

type rosc struct{ *node }

func (o rosc) Frequency() Param { return o.node.freq }

func (o rosc) Start() {
	o.r.mu.Lock()
	o.node.started = true
	o.r.mu.Unlock()
}

func (o rosc) Stop() {
	o.r.mu.Lock()
	o.node.stopped = true
	o.r.mu.Unlock()
}

type rgain struct{ *node }

func (g rgain) Level() Param { return g.node.level }

type rfilter struct{ *node }

func (f rfilter) Cutoff() Param    { return f.node.cutoff }
func (f rfilter) Resonance() Param { return f.node.q }

type rnoise struct{ *node }

func (s rnoise) Start() {
	s.r.mu.Lock()
	s.node.started = true
	s.r.mu.Unlock()
}

func (s rnoise) Stop() {
	s.r.mu.Lock()
	s.node.stopped = true
	s.r.mu.Unlock()
}

// Oscillator implements Builder.
func (r *Renderer) Oscillator(w Waveform, freq float64) Oscillator {
	n := &node{r: r, kind: kindOsc, wave: w, buf: make([]float64, renderBlockSize), done: -1}
	n.freq = newParam(r, freq)
	return rosc{n}
}

// Filter implements Builder.
func (r *Renderer) Filter(k FilterKind, cutoff, resonance float64) Filter {
	n := &node{r: r, kind: kindFilter, fkind: k, buf: make([]float64, renderBlockSize), done: -1}
	n.cutoff = newParam(r, cutoff)
	n.q = newParam(r, resonance)
	return rfilter{n}
}

// Gain implements Builder.
func (r *Renderer) Gain(level float64) Gain {
	n := &node{r: r, kind: kindGain, buf: make([]float64, renderBlockSize), done: -1}
	n.level = newParam(r, level)
	return rgain{n}
}

// Noise implements Builder. The loop is uniform white noise in [-1, 1),
// generated from a fixed seed so offline renders are reproducible.
func (r *Renderer) Noise(loop time.Duration) Noise {
	n := &node{r: r, kind: kindNoise, buf: make([]float64, renderBlockSize), done: -1}
	frames := int(loop.Seconds() * float64(r.sampleRate))
	if frames < 1 {
		frames = 1
	}
	rng := rand.New(rand.NewSource(1))
	n.loop = make([]float64, frames)
	for i := range n.loop {
		n.loop[i] = rng.Float64()*2 - 1
	}
	return rnoise{n}
}

// Destination implements Builder.
func (r *Renderer) Destination() Node { return r.dest }

// Now implements Builder.
func (r *Renderer) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameTime(r.frame)
}

func (r *Renderer) frameTime(f int64) time.Duration {
	return time.Duration(f) * time.Second / time.Duration(r.sampleRate)
}

func (r *Renderer) frames(d time.Duration) int64 {
	return int64(d.Seconds() * float64(r.sampleRate))
}

type rtimer struct {
	r         *Renderer
	seq       int64
	due       int64
	period    int64 // 0 for one-shot
	fn        func()
	cancelled bool
}

// Cancel implements Timer.
func (t *rtimer) Cancel() {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.cancelled = true
}

// After implements Builder.
func (r *Renderer) After(d time.Duration, fn func()) Timer {
	return r.schedule(d, 0, fn)
}

// Every implements Builder.
func (r *Renderer) Every(d time.Duration, fn func()) Timer {
	p := r.frames(d)
	if p < 1 {
		p = 1
	}
	return r.schedule(d, p, fn)
}

func (r *Renderer) schedule(d time.Duration, period int64, fn func()) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerSeq++
	t := &rtimer{r: r, seq: r.timerSeq, due: r.frame + r.frames(d), period: period, fn: fn}
	r.timers = append(r.timers, t)
	return t
}

// RenderBlock renders the next block of mono samples into dst, firing any
// timers that fall due at the block boundary first. dst must hold
// BlockSize() samples. It returns false once the renderer is closed.
func (r *Renderer) RenderBlock(dst []float64) bool {
	r.fireDueTimers()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.dest.render(r.frame)
	copy(dst, r.dest.buf)
	copy(r.last, r.last[renderBlockSize:])
	copy(r.last[spectrumWindow-renderBlockSize:], r.dest.buf)
	r.frame += renderBlockSize
	return true
}

// BlockSize returns the number of frames produced per RenderBlock call.
func (r *Renderer) BlockSize() int { return renderBlockSize }

// fireDueTimers pops every timer due at or before the current frame and
// runs the callbacks in due order with the renderer unlocked, so callbacks
// can mutate the graph and schedule further timers.
func (r *Renderer) fireDueTimers() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	var due []*rtimer
	kept := r.timers[:0]
	for _, t := range r.timers {
		switch {
		case t.cancelled:
		case t.due <= r.frame:
			due = append(due, t)
			if t.period > 0 {
				t.due += t.period
				kept = append(kept, t)
			}
		default:
			kept = append(kept, t)
		}
	}
	r.timers = kept
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	r.mu.Unlock()

	for _, t := range due {
		r.mu.Lock()
		skip := t.cancelled || r.closed
		r.mu.Unlock()
		if skip {
			continue
		}
		t.fn()
	}
}

// Spectrum implements Builder. Magnitudes come from Goertzel probes at
// log-spaced frequencies over a Hann-windowed copy of the most recent
// frames; this is the approximate mono tap the engine's meter is built on.
func (r *Renderer) Spectrum(bins []float64) {
	r.mu.Lock()
	window := make([]float64, len(r.last))
	copy(window, r.last)
	sr := float64(r.sampleRate)
	r.mu.Unlock()

	if len(bins) == 0 {
		return
	}
	for i := range window {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(len(window)-1)))
		window[i] *= w
	}
	span := 6.0 // octaves above 55 Hz
	for k := range bins {
		frac := 0.0
		if len(bins) > 1 {
			frac = float64(k) / float64(len(bins)-1)
		}
		freq := 55 * math.Pow(2, span*frac)
		bins[k] = math.Min(1, 2.5*math.Sqrt(goertzel(window, freq, sr)))
	}
}

// goertzel returns the normalized magnitude of one frequency component.
func goertzel(block []float64, freq, sampleRate float64) float64 {
	if len(block) == 0 {
		return 0
	}
	w := 2 * math.Pi * freq / sampleRate
	c := 2 * math.Cos(w)
	var s0, s1, s2 float64
	for _, x := range block {
		s0 = x + c*s1 - s2
		s2, s1 = s1, s0
	}
	power := s1*s1 + s2*s2 - c*s1*s2
	if power < 0 {
		power = 0
	}
	return 2 * math.Sqrt(power) / float64(len(block))
}

// Close implements Builder. Pending timers are discarded and subsequent
// renders produce nothing.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.timers = nil
	return nil
}
