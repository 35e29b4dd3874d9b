// Package selector opens the transcription backend named by a speech.Config.
package selector

import (
	"context"
	"fmt"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/speech"
	"github.com/sjzar/tubescribe/internal/speech/remote"
	"github.com/sjzar/tubescribe/internal/speech/whispercpp"
)

// Open returns a ready backend or an unavailable-backend error. Nothing is
// transcribed here, so a failure leaves no trace in the chunk store.
func Open(ctx context.Context, cfg speech.Config) (speech.Backend, error) {
	switch cfg.Kind {
	case speech.KindRemote:
		b, err := remote.New(remote.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.RemoteModel,
			Timeout: cfg.Timeout,
			Options: cfg.Options,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case speech.KindLocal:
		b, err := whispercpp.New(ctx, whispercpp.Config{
			Model:    cfg.Model,
			ModelDir: cfg.ModelDir,
			Device:   cfg.Device,
			Options:  cfg.Options,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, errors.Unavailable(cfg.Kind.String(), fmt.Errorf("unsupported backend kind %d", int(cfg.Kind)))
	}
}

// Shutdown releases process-wide backend state such as loaded local models.
func Shutdown() error {
	return whispercpp.Shutdown()
}
