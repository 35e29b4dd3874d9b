package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegPath is the binary used to convert compressed formats.
var FFmpegPath = "ffmpeg"

// ConvertToWAV uses ffmpeg to transcode src into mono 16kHz WAV inside tmpDir
// and returns the path of the new file. The caller removes it.
func ConvertToWAV(ctx context.Context, src string, tmpDir string) (string, error) {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out, err := os.CreateTemp(tmpDir, base+"-*.wav")
	if err != nil {
		return "", fmt.Errorf("create tmp wav: %w", err)
	}
	outPath := out.Name()
	out.Close()

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, FFmpegPath,
		"-y", "-loglevel", "error",
		"-i", src,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return outPath, nil
}
