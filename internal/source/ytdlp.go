package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/pkg/util"
)

// YTDLP downloads the audio track of a video with the yt-dlp binary.
type YTDLP struct {
	Path   string // binary, default "yt-dlp"
	Format string // audio format, default "mp3"
}

// OutputPath is where the audio for req ends up.
func (y YTDLP) OutputPath(req Request) string {
	return filepath.Join(req.Dir, req.Base+"."+y.format())
}

func (y YTDLP) format() string {
	if y.Format == "" {
		return "mp3"
	}
	return y.Format
}

// Fetch reuses an earlier download unless req.Force is set. Failures are not
// retried.
func (y YTDLP) Fetch(ctx context.Context, req Request) (string, error) {
	out := y.OutputPath(req)
	if !req.Force && util.FileExists(out) {
		log.Info().Str("file", out).Msg("using existing audio")
		return out, nil
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", errors.Fetch(req.Source, err)
	}

	bin := y.Path
	if bin == "" {
		bin = "yt-dlp"
	}
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", y.format(),
		"--audio-quality", "192K",
		"--force-overwrites",
		"--output", filepath.Join(req.Dir, req.Base+".%(ext)s"),
		req.Source,
	}
	log.Info().Str("source", req.Source).Str("output", out).Msg("downloading audio")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Fetch(req.Source, fmt.Errorf("%s: %w: %s", bin, err, lastLine(stderr.String())))
	}
	if !util.FileExists(out) {
		return "", errors.Fetch(req.Source, fmt.Errorf("output file not found: %s", out))
	}
	log.Info().Str("file", out).Msg("audio downloaded")
	return out, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
