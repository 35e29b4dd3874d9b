package whispercpp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/speech"
)

// DefaultBaseURL serves the ggml files published by whisper.cpp.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// DownloadResult reports where a model lives and whether it was already cached.
type DownloadResult struct {
	Path    string
	Existed bool
}

// Downloader keeps ggml model files in a cache directory, fetching missing
// ones on demand. Concurrent requests for the same file share one download.
type Downloader struct {
	dir     string
	baseURL string
	client  *http.Client
}

var fileLocks sync.Map // model path -> *sync.Mutex

func NewDownloader(dir string) *Downloader {
	return &Downloader{
		dir:     dir,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

// WithBaseURL points the downloader at a mirror.
func (d *Downloader) WithBaseURL(u string) *Downloader {
	d.baseURL = strings.TrimSuffix(u, "/") + "/"
	return d
}

// ModelFileName maps a model class to its ggml file name.
func ModelFileName(size speech.ModelSize) string {
	switch size {
	case speech.ModelLarge:
		return "ggml-large-v3.bin"
	case "":
		return "ggml-small.bin"
	default:
		return "ggml-" + string(size) + ".bin"
	}
}

// Path is where the model of the given class is cached.
func (d *Downloader) Path(size speech.ModelSize) string {
	return filepath.Join(d.dir, ModelFileName(size))
}

// EnsureModel returns the cached model file, downloading it first when absent.
func (d *Downloader) EnsureModel(ctx context.Context, size speech.ModelSize) (DownloadResult, error) {
	target := d.Path(size)
	mu, _ := fileLocks.LoadOrStore(target, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	if fi, err := os.Stat(target); err == nil && fi.Size() > 0 {
		return DownloadResult{Path: target, Existed: true}, nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return DownloadResult{}, fmt.Errorf("create model dir: %w", err)
	}

	partial := target + ".downloading"
	url := d.baseURL + ModelFileName(size)
	if err := d.fetch(ctx, url, partial); err != nil {
		_ = os.Remove(partial)
		return DownloadResult{}, err
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		return DownloadResult{}, fmt.Errorf("install model: %w", err)
	}
	return DownloadResult{Path: target}, nil
}

func (d *Downloader) fetch(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	log.Info().Str("url", url).Int64("size", resp.ContentLength).Msg("downloading whisper model")

	start := time.Now()
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	// A short body means the transfer was cut; never install a truncated model.
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("download %s: got %d of %d bytes", url, n, resp.ContentLength)
	}

	log.Info().Str("path", dst).Int64("bytes", n).Dur("elapsed", time.Since(start)).Msg("whisper model downloaded")
	return nil
}
