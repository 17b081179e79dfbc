package acoustic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maastricht-university/session-insights/analysis"
)

var ErrInvalidWAV = errors.New("not a valid wav file")

// Extractor tracks frame energy and pitch over a WAV file.
type Extractor struct {
	FrameLength int     // samples per analysis frame
	HopLength   int     // samples between frame starts
	PitchStride int     // estimate pitch on every Nth frame
	MinPitch    float64 // Hz
	MaxPitch    float64 // Hz
	// Voicing is the minimum normalized autocorrelation for a frame to
	// count as voiced.
	Voicing float64
	// SilenceRMS frames below this energy get no pitch estimate.
	SilenceRMS float64
}

func NewExtractor() *Extractor {
	return &Extractor{
		FrameLength: 2048,
		HopLength:   512,
		PitchStride: 4,
		MinPitch:    75,
		MaxPitch:    400,
		Voicing:     0.3,
		SilenceRMS:  1e-3,
	}
}

// decodeChunk is the number of sample frames decoded per read.
const decodeChunk = 8192

// Extract implements analysis.AcousticExtractor. The file is decoded in
// chunks, so memory follows the frame tracks rather than the recording.
func (e *Extractor) Extract(ctx context.Context, wavPath string) (analysis.AcousticFeatures, error) {
	t, err := e.trackFile(ctx, wavPath)
	if err != nil {
		return analysis.AcousticFeatures{}, err
	}
	if len(t.energy) == 0 {
		return analysis.AcousticFeatures{}, fmt.Errorf("acoustic: no audio frames in %s", wavPath)
	}
	return analysis.AcousticFeatures{
		PitchVariability: round2(PitchVariability(t.pitch)),
		VolumeStability:  round2(VolumeStability(t.energy)),
		StressIndicator:  round2(StressIndicator(t.pitch, t.energy)),
		TremorDetected:   DetectTremor(t.pitch),
	}, nil
}

// trackFile streams a PCM WAV file through a tracker, downmixing to mono
// samples in [-1,1].
func (e *Extractor) trackFile(ctx context.Context, path string) (*tracker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	if d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %s has no sample rate", ErrInvalidWAV, path)
	}

	chans := max(1, int(d.NumChans))
	bits := int(d.BitDepth)
	if bits == 0 {
		bits = 16
	}
	scale, offset := math.Pow(2, float64(bits-1)), 0.0
	if bits == 8 {
		scale, offset = 128, 128 // unsigned
	}

	t := e.newTracker(int(d.SampleRate))
	buf := &audio.IntBuffer{Data: make([]int, decodeChunk*chans)}
	mono := make([]float64, 0, decodeChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := d.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode wav: %w", err)
		}
		mono = mono[:0]
		for i := 0; i+chans <= n; i += chans {
			s := 0.0
			for c := 0; c < chans; c++ {
				s += float64(buf.Data[i+c]) - offset
			}
			mono = append(mono, s/float64(chans)/scale)
		}
		t.feed(mono)
		if n == 0 || err != nil {
			break
		}
	}
	t.flush()
	return t, nil
}

// Track returns per-frame RMS energy for every frame and a pitch estimate
// for every voiced frame.
func (e *Extractor) Track(ctx context.Context, samples []float64, rate int) (energy, pitch []float64, err error) {
	if len(samples) == 0 || rate <= 0 {
		return nil, nil, nil
	}
	t := e.newTracker(rate)
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		n := min(len(samples), decodeChunk)
		t.feed(samples[:n])
		samples = samples[n:]
	}
	t.flush()
	return t.energy, t.pitch, nil
}

// tracker frames a sample stream incrementally. Only the samples the next
// frame still needs are kept between feeds.
type tracker struct {
	e        *Extractor
	rate     int
	frameLen int
	hop      int
	minLag   int
	maxLag   int
	stride   int

	pending []float64
	frames  int
	energy  []float64
	pitch   []float64
}

func (e *Extractor) newTracker(rate int) *tracker {
	frameLen := max(1, e.FrameLength)
	hop := e.HopLength
	if hop <= 0 || hop > frameLen {
		hop = frameLen
	}
	return &tracker{
		e:        e,
		rate:     rate,
		frameLen: frameLen,
		hop:      hop,
		minLag:   int(float64(rate) / e.MaxPitch),
		maxLag:   int(float64(rate) / e.MinPitch),
		stride:   max(1, e.PitchStride),
	}
}

func (t *tracker) feed(samples []float64) {
	t.pending = append(t.pending, samples...)
	start := 0
	for ; start+t.frameLen <= len(t.pending); start += t.hop {
		t.frame(t.pending[start : start+t.frameLen])
	}
	t.pending = append(t.pending[:0], t.pending[start:]...)
}

// flush handles input shorter than one frame, which is analyzed as a
// single short frame.
func (t *tracker) flush() {
	if t.frames == 0 && len(t.pending) > 0 {
		t.frame(t.pending)
	}
	t.pending = nil
}

func (t *tracker) frame(frame []float64) {
	idx := t.frames
	t.frames++
	rms := frameRMS(frame)
	t.energy = append(t.energy, rms)
	if idx%t.stride != 0 || rms < t.e.SilenceRMS {
		return
	}
	if f0, ok := autocorrPitch(frame, t.rate, t.minLag, t.maxLag, t.e.Voicing); ok {
		t.pitch = append(t.pitch, f0)
	}
}

func frameRMS(frame []float64) float64 {
	s := 0.0
	for _, x := range frame {
		s += x * x
	}
	return math.Sqrt(s / float64(len(frame)))
}

// autocorrPitch picks the lag with the strongest autocorrelation within
// [minLag, maxLag]. The sum runs over len-lag terms so shorter lags win ties
// against their multiples.
func autocorrPitch(frame []float64, rate, minLag, maxLag int, voicing float64) (float64, bool) {
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if minLag < 1 || minLag > maxLag {
		return 0, false
	}
	r0 := 0.0
	for _, x := range frame {
		r0 += x * x
	}
	if r0 == 0 {
		return 0, false
	}

	bestLag, best := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		r := 0.0
		for i := 0; i+lag < len(frame); i++ {
			r += frame[i] * frame[i+lag]
		}
		if r > best {
			best, bestLag = r, lag
		}
	}
	if bestLag == 0 || best/r0 < voicing {
		return 0, false
	}
	return float64(rate) / float64(bestLag), true
}
