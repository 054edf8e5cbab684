package graph

import (
	"math"
	"time"
)

type segKind int

const (
	segSet segKind = iota
	segLinear
	segExp
	segTarget
)

// seg is one automation segment. Segments never overlap; scheduling
// computes each segment's starting value up front, so evaluation is a
// plain walk.
type seg struct {
	kind       segKind
	start, end int64 // frames; target segments are open-ended
	from, to   float64
	tc         float64 // seconds, target segments only
}

// param implements Param for the software renderer. An audio-rate value is
// the automation value plus the sum of any connected modulator outputs.
type param struct {
	r    *Renderer
	init float64
	segs []seg
	mods []*node
}

func newParam(r *Renderer, v float64) *param {
	return &param{r: r, init: v}
}

// automationAt evaluates the scheduled value at an absolute frame.
// Caller holds the renderer lock or is on the render path.
func (p *param) automationAt(frame int64) float64 {
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
			dt := float64(frame-s.start) / float64(p.r.sampleRate)
			v = s.to + (s.from-s.to)*math.Exp(-dt/s.tc)
		}
	}
	return v
}

// sample returns the audio-rate value at an absolute frame, with i the
// sample's offset inside the current block for modulator lookup.
func (p *param) sample(frame int64, i int) float64 {
	v := p.automationAt(frame)
	for _, m := range p.mods {
		v += m.buf[i]
	}
	return v
}

// tail returns the frame and value at which newly scheduled automation
// should begin: the end of the queue, or now when nothing is pending.
// Caller holds the renderer lock.
func (p *param) tail() (int64, float64) {
	now := p.r.frame
	if len(p.segs) == 0 {
		return now, p.automationAt(now)
	}
	last := p.segs[len(p.segs)-1]
	at := last.end
	if last.kind == segTarget || at < now {
		at = max64(last.start, now)
	}
	return at, p.automationAt(at)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Value implements Param.
func (p *param) Value() float64 {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	return p.automationAt(p.r.frame)
}

// Set implements Param.
func (p *param) Set(v float64) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.init = v
	p.segs = nil
}

// SetAt implements Param.
func (p *param) SetAt(v float64, delay time.Duration) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	at := p.r.frame + p.r.frames(delay)
	tailAt, _ := p.tail()
	at = max64(at, tailAt)
	p.segs = append(p.segs, seg{kind: segSet, start: at, end: at, to: v})
	p.compact()
}

// RampLinear implements Param.
func (p *param) RampLinear(target float64, d time.Duration) {
	p.appendRamp(segLinear, target, d, 0)
}

// RampExp implements Param.
func (p *param) RampExp(target float64, d time.Duration) {
	p.appendRamp(segExp, target, d, 0)
}

// RampTarget implements Param.
func (p *param) RampTarget(target float64, timeConstant time.Duration) {
	p.appendRamp(segTarget, target, 0, timeConstant.Seconds())
}

func (p *param) appendRamp(kind segKind, target float64, d time.Duration, tc float64) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	start, from := p.tail()
	s := seg{kind: kind, start: start, from: from, to: target, tc: tc}
	if kind == segTarget {
		s.end = math.MaxInt64
	} else {
		s.end = start + p.r.frames(d)
		if s.end <= s.start {
			s.kind = segSet
			s.end = s.start
		}
	}
	p.segs = append(p.segs, s)
	p.compact()
}

// compact drops segments the evaluation walk can no longer reach: ramps
// that completed before the current frame, and segments whose successor
// has already started and therefore overrides them. Open-ended target
// segments fall in the second class, which keeps the queue bounded under
// repeated retunes.
func (p *param) compact() {
	now := p.r.frame
	cut := 0
	for cut < len(p.segs)-1 {
		s := p.segs[cut]
		done := s.end <= now && s.kind != segTarget
		overridden := p.segs[cut+1].start <= now
		if !done && !overridden {
			break
		}
		cut++
	}
	if cut > 0 {
		p.init = p.segs[cut-1].to
		p.segs = append(p.segs[:0], p.segs[cut:]...)
	}
}
