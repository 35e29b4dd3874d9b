package audio

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Buffer holds decoded mono PCM samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// NewBuffer wraps samples recorded at sampleRate.
func NewBuffer(samples []float32, sampleRate int) *Buffer {
	return &Buffer{Samples: samples, SampleRate: sampleRate}
}

// Silence returns a buffer of zero samples lasting durationMS.
func Silence(durationMS int64, sampleRate int) *Buffer {
	return &Buffer{
		Samples:    make([]float32, msToSamples(durationMS, sampleRate)),
		SampleRate: sampleRate,
	}
}

// DurationMS returns the length of the buffer in whole milliseconds, rounded up
// so that a trailing partial millisecond is still covered by a segment.
func (b *Buffer) DurationMS() int64 {
	if b == nil || b.SampleRate <= 0 || len(b.Samples) == 0 {
		return 0
	}
	n := int64(len(b.Samples)) * 1000
	rate := int64(b.SampleRate)
	return (n + rate - 1) / rate
}

// Slice returns a copy of the half-open span [startMS, endMS).
func (b *Buffer) Slice(startMS, endMS int64) *Buffer {
	from := clamp(msToSamples(startMS, b.SampleRate), 0, len(b.Samples))
	to := clamp(msToSamples(endMS, b.SampleRate), from, len(b.Samples))
	out := make([]float32, to-from)
	copy(out, b.Samples[from:to])
	return &Buffer{Samples: out, SampleRate: b.SampleRate}
}

// Resample returns the buffer converted to rate using linear interpolation.
func (b *Buffer) Resample(rate int) *Buffer {
	return &Buffer{Samples: resampleFloat32(b.Samples, b.SampleRate, rate), SampleRate: rate}
}

// WriteWAV encodes the buffer as 16-bit mono PCM WAV.
func (b *Buffer) WriteWAV(w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, b.SampleRate, 16, 1, 1)
	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * 32767))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func msToSamples(ms int64, rate int) int {
	if ms <= 0 || rate <= 0 {
		return 0
	}
	return int(ms * int64(rate) / 1000)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func resampleFloat32(src []float32, srcRate, dstRate int) []float32 {
	if len(src) == 0 {
		return nil
	}
	if srcRate <= 0 {
		srcRate = dstRate
	}
	if dstRate <= 0 || srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	targetLen := int(math.Ceil(float64(len(src)) / ratio))
	if targetLen <= 0 {
		targetLen = 1
	}

	out := make([]float32, targetLen)
	for i := 0; i < targetLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := float32(srcPos - float64(idx))
		switch {
		case idx >= len(src)-1:
			out[i] = src[len(src)-1]
		default:
			val := src[idx]
			next := src[idx+1]
			out[i] = val + (next-val)*frac
		}
	}
	return out
}
