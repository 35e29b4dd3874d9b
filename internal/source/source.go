// Package source resolves a job's source (a local path or a video URL) into
// a local audio file.
package source

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sjzar/tubescribe/internal/audio"
	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/pkg/util"
)

// Request names what to fetch and where the job keeps its files.
type Request struct {
	Source string
	Base   string
	// Dir is the job directory, <workdir>/<base>.
	Dir   string
	Force bool
}

// Provider yields a local audio file for a request.
type Provider interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DefaultBaseName derives a job name from source: the video id of a YouTube
// link, otherwise the file name without extension.
func DefaultBaseName(source string) string {
	s := strings.TrimSpace(source)
	if IsRemote(s) {
		u, _ := url.Parse(s)
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		switch {
		case host == "youtu.be":
			if id := strings.Trim(u.Path, "/"); id != "" {
				return sanitize(id)
			}
		case strings.HasSuffix(host, "youtube.com"):
			if v := u.Query().Get("v"); v != "" {
				return sanitize(v)
			}
			if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok && rest != "" {
				return sanitize(strings.Trim(rest, "/"))
			}
		}
	}
	name := sanitize(util.BaseName(s))
	if name == "" {
		return "audio"
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

// Local serves files already on disk.
type Local struct{}

func (Local) Fetch(ctx context.Context, req Request) (string, error) {
	path := req.Source
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.New(errors.ErrInput, err, "audio file not found: "+path)
	}
	if info.IsDir() {
		return "", errors.Input(path + " is a directory")
	}
	if !audio.IsSupported(filepath.Ext(path)) {
		return "", errors.Input("unsupported audio format: " + filepath.Ext(path))
	}
	return path, nil
}

// Auto dispatches URLs to Remote and everything else to Local.
type Auto struct {
	Local  Provider
	Remote Provider
}

func (a Auto) Fetch(ctx context.Context, req Request) (string, error) {
	if IsRemote(req.Source) {
		if a.Remote == nil {
			return "", errors.Fetch(req.Source, errors.Input("no remote provider configured"))
		}
		return a.Remote.Fetch(ctx, req)
	}
	local := a.Local
	if local == nil {
		local = Local{}
	}
	return local.Fetch(ctx, req)
}
