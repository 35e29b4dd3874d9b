//go:build cgo && whisper

package whispercpp

/*
#cgo CFLAGS: -I${SRCDIR}/../../../third_party/whisper/include
#cgo LDFLAGS: -L${SRCDIR}/../../../third_party/whisper/lib -lwhisper -lggml -lstdc++ -lm
*/
import "C"

import (
	"context"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/speech"
)

var sharedModels = NewModelCache(whisper.New)

// Backend runs a whisper.cpp model in-process. The model weights are shared
// across backends that point at the same file; decoding contexts are not.
type Backend struct {
	mu        sync.Mutex
	model     whisper.Model
	name      string
	placement Placement
	opts      speech.Options
}

// New resolves the model file (downloading it on first use) and loads it.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	path := strings.TrimSpace(cfg.ModelPath)
	size := cfg.Model
	if size == "" {
		size = speech.ModelSmall
	}
	if path == "" {
		res, err := NewDownloader(cfg.ModelDir).EnsureModel(ctx, size)
		if err != nil {
			return nil, errors.Unavailable("local", err)
		}
		path = res.Path
	}

	model, err := sharedModels.Get(path)
	if err != nil {
		return nil, errors.Unavailable("local", err)
	}

	placement := SelectDevice(cfg.Device, gpuBuilt, cfg.Options.Threads)
	log.Info().
		Str("model", path).
		Str("device", string(placement.Device)).
		Int("threads", placement.Threads).
		Msg("whisper.cpp model ready")

	return &Backend{
		model:     model,
		name:      "local:" + string(size),
		placement: placement,
		opts:      cfg.Options,
	}, nil
}

func (b *Backend) Name() string { return b.name }

// Transcribe decodes one clip greedily with temperature fallback disabled so
// repeated runs over the same audio produce the same text.
func (b *Backend) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	if clip.Audio == nil || len(clip.Audio.Samples) == 0 {
		return "", errors.Transcription(clip.Index, errors.Input("empty audio"))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	samples := clip.Audio.Resample(int(whisper.SampleRate)).Samples

	// A context holds mutable decoder state; one clip at a time per backend.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model == nil {
		return "", errors.Unavailable("local", errors.Input("backend closed"))
	}

	wctx, err := b.model.NewContext()
	if err != nil {
		return "", errors.Transcription(clip.Index, err)
	}
	wctx.SetThreads(uint(b.placement.Threads))
	lang := strings.TrimSpace(b.opts.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", errors.Transcription(clip.Index, err)
	}
	wctx.SetTranslate(false)
	wctx.SetTemperature(0)
	wctx.SetTemperatureFallback(0)
	if p := strings.TrimSpace(b.opts.Prompt); p != "" {
		wctx.SetInitialPrompt(p)
	}

	encoderCb := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, encoderCb, nil, nil); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Transcription(clip.Index, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Transcription(clip.Index, err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// Close detaches the backend. The shared model stays resident until Shutdown.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.model = nil
	b.mu.Unlock()
	return nil
}

// Shutdown releases every model loaded by this process.
func Shutdown() error {
	return sharedModels.Close()
}
