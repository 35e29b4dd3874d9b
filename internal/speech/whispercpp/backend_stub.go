//go:build !cgo || !whisper

package whispercpp

import (
	"context"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/speech"
)

// Backend is unavailable in builds without whisper.cpp.
type Backend struct{}

// New always fails with an unavailable-backend error in this build.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	return nil, errors.Unavailable("local", ErrNotCompiled)
}

func (b *Backend) Name() string { return "local" }

func (b *Backend) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	return "", errors.Unavailable("local", ErrNotCompiled)
}

func (b *Backend) Close() error { return nil }

// Shutdown releases process-wide model state.
func Shutdown() error { return nil }
