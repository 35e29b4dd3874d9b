package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/errors"
)

// SupportedFormats lists the file extensions Load accepts.
var SupportedFormats = []string{".wav", ".mp3", ".m4a"}

// Load decodes the audio file at path into a mono Buffer. WAV files are read
// directly; other supported formats go through ffmpeg first.
func Load(ctx context.Context, path string, tmpDir string) (*Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(errors.ErrInput, err, "audio file not found: "+path)
	}
	if info.IsDir() {
		return nil, errors.Input("audio path is a directory: " + path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(ext) {
		return nil, errors.Input("unsupported audio format: " + ext)
	}

	wavPath := path
	if ext != ".wav" {
		converted, err := ConvertToWAV(ctx, path, tmpDir)
		if err != nil {
			return nil, errors.New(errors.ErrInput, err, "decode "+filepath.Base(path))
		}
		defer os.Remove(converted)
		wavPath = converted
	}

	f, err := os.Open(wavPath)
	if err != nil {
		return nil, errors.New(errors.ErrInput, err, "open audio file")
	}
	defer f.Close()

	buf, err := DecodeWAV(f)
	if err != nil {
		return nil, errors.New(errors.ErrInput, err, "decode "+filepath.Base(path))
	}
	log.Debug().Str("path", path).Int("sample_rate", buf.SampleRate).Int64("duration_ms", buf.DurationMS()).Msg("audio loaded")
	return buf, nil
}

// IsSupported reports whether ext (with leading dot) is a supported format.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, f := range SupportedFormats {
		if f == ext {
			return true
		}
	}
	return false
}

// DecodeWAV reads a PCM WAV stream and downmixes it to mono float samples.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(pcm.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			v := pcm.Data[i*channels+c]
			if bitDepth == 8 {
				// 8-bit WAV is unsigned.
				v -= 128
			}
			sum += float32(v) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return &Buffer{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}
