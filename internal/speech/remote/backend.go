// Package remote transcribes chunks through the OpenAI audio transcription API.
package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/speech"
)

// DefaultModel is the hosted model used when none is configured.
const DefaultModel = "whisper-1"

// Config configures the remote backend.
type Config struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible servers
	Model   string
	Timeout time.Duration // per request, default 10 minutes
	Options speech.Options
}

// Backend is a speech.Backend calling a hosted speech-to-text endpoint.
type Backend struct {
	client openai.Client
	model  string
	opts   speech.Options
}

var _ speech.Backend = (*Backend)(nil)

// New builds the backend. A missing API key makes the backend unavailable.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.Unavailable("remote", fmt.Errorf("OPENAI_API_KEY is not set"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are the caller's decision: a failed chunk is resumed by re-running the job.
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Backend{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		opts:   cfg.Options,
	}, nil
}

func (b *Backend) Name() string {
	return "remote:" + b.model
}

// Transcribe uploads the clip as WAV and returns the recognized text.
func (b *Backend) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	path := clip.Path
	if path == "" {
		if clip.Audio == nil {
			return "", errors.Transcription(clip.Index, fmt.Errorf("clip has neither file nor audio"))
		}
		tmp, err := writeTempWAV(clip)
		if err != nil {
			return "", errors.Transcription(clip.Index, err)
		}
		defer os.Remove(tmp)
		path = tmp
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Transcription(clip.Index, fmt.Errorf("open chunk audio: %w", err))
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(f, filepath.Base(path), "audio/wav"),
		Model:          openai.AudioModel(b.model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if lang := strings.TrimSpace(b.opts.Language); lang != "" && lang != "auto" {
		params.Language = openai.String(lang)
	}
	if prompt := strings.TrimSpace(b.opts.Prompt); prompt != "" {
		params.Prompt = openai.String(prompt)
	}

	start := time.Now()
	resp, err := b.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			log.Debug().Int("status", apiErr.StatusCode).Str("code", apiErr.Code).Int("chunk", clip.Index).Msg("transcription api error")
		}
		return "", errors.Transcription(clip.Index, err)
	}
	log.Debug().Int("chunk", clip.Index).Dur("took", time.Since(start)).Msg("remote transcription done")
	return resp.Text, nil
}

func (b *Backend) Close() error { return nil }

func writeTempWAV(clip speech.Clip) (string, error) {
	tmp, err := os.CreateTemp("", fmt.Sprintf("tubescribe-chunk-%d-*.wav", clip.Index))
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	if err := clip.Audio.WriteWAV(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

