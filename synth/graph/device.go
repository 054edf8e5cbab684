package graph

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// DefaultSampleRate is the output rate used when nothing else is
// configured. oto is only reliable at 44.1 and 48 kHz.
const DefaultSampleRate = 44100

// Device couples a software Renderer to the audio hardware through oto.
// The oto player pulls PCM from the renderer on its own schedule, which is
// what clocks the graph timeline in production.
type Device struct {
	*Renderer

	ctx    *oto.Context
	player *oto.Player

	closeOnce sync.Once
	closeErr  error
}

// OpenDevice creates a renderer wired to the default audio output. The
// one awaited step is oto's ready channel; callers must treat an error
// here as "no audio available" and keep the engine unusable.
func OpenDevice(sampleRate int) (*Device, error) {
	if sampleRate != 44100 && sampleRate != 48000 {
		return nil, fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", sampleRate)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("unable to create audio context: %w", err)
	}
	<-ready

	d := &Device{
		Renderer: NewRenderer(sampleRate),
		ctx:      ctx,
	}
	d.player = ctx.NewPlayer(&pcmStream{r: d.Renderer})
	if d.player == nil {
		return nil, errors.New("unable to create audio player")
	}
	d.player.Play()

	log.Debug("audio device opened", "sample_rate", sampleRate)
	return d, nil
}

// Close stops the output stream and shuts the renderer down. Safe to call
// more than once; only the first call does work.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		if d.player != nil {
			err := d.player.Close()
			if err != nil {
				d.closeErr = fmt.Errorf("unable to close audio player: %w", err)
			}
			d.player = nil
		}
		// oto v3 contexts have no Close; dropping the reference is the
		// documented way to release one.
		d.ctx = nil
		_ = d.Renderer.Close()
		log.Debug("audio device closed")
	})
	return d.closeErr
}

// pcmStream adapts the renderer's block output to the io.Reader oto
// consumes: 16-bit little-endian PCM, the mono render duplicated to both
// channels.
type pcmStream struct {
	r        *Renderer
	block    []float64
	leftover []byte
}

const bytesPerFrame = 4 // 2 channels x int16

// Read implements io.Reader. It renders as many whole blocks as fit,
// carrying any partial block over to the next call. After the renderer is
// closed it reports EOF, which ends the oto stream.
func (s *pcmStream) Read(p []byte) (int, error) {
	n := 0
	if len(s.leftover) > 0 {
		c := copy(p, s.leftover)
		s.leftover = s.leftover[c:]
		n += c
	}
	if s.block == nil {
		s.block = make([]float64, s.r.BlockSize())
	}
	for n < len(p) {
		if !s.r.RenderBlock(s.block) {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		encoded := encodePCM(s.block)
		c := copy(p[n:], encoded)
		n += c
		if c < len(encoded) {
			s.leftover = encoded[c:]
			break
		}
	}
	return n, nil
}

// encodePCM converts one mono block to interleaved stereo int16 LE,
// clipping at full scale.
func encodePCM(block []float64) []byte {
	out := make([]byte, len(block)*bytesPerFrame)
	for i, v := range block {
		v = math.Max(-1, math.Min(1, v))
		s := int16(v * 32767)
		lo, hi := byte(s), byte(s>>8)
		out[i*4+0] = lo
		out[i*4+1] = hi
		out[i*4+2] = lo
		out[i*4+3] = hi
	}
	return out
}

// RenderPCM renders d worth of output into w as stereo int16 LE PCM
// without any audio device, for offline inspection.
func RenderPCM(r *Renderer, w io.Writer, d time.Duration) error {
	block := make([]float64, r.BlockSize())
	frames := int64(d.Seconds() * float64(r.SampleRate()))
	var done int64
	for done < frames {
		if !r.RenderBlock(block) {
			return errors.New("renderer closed during offline render")
		}
		if _, err := w.Write(encodePCM(block)); err != nil {
			return fmt.Errorf("unable to write PCM: %w", err)
		}
		done += int64(len(block))
	}
	return nil
}
