// Package pipeline drives a transcription job: fetch, segment, resolve each
// segment against the chunk cache, transcribe the rest, and reassemble.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sjzar/tubescribe/internal/chunkstore"
	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/source"
	"github.com/sjzar/tubescribe/internal/speech"
)

// DefaultChunkLength is the segment length used when a job names none.
const DefaultChunkLength = 60 * time.Second

// Job is one invocation of the pipeline. Build it with NewJob.
type Job struct {
	Source      string
	BaseName    string
	ChunkLength time.Duration
	Backend     speech.Kind
	Model       speech.ModelSize
	// Force bypasses the final-transcript short-circuit and the chunk cache.
	Force bool
	// ForceFetch downloads the source again even when the audio exists.
	ForceFetch bool
	// Start and End trim the audio before segmentation. End == 0 keeps the tail.
	Start time.Duration
	End   time.Duration
}

// NewJob validates j and fills in defaults.
func NewJob(j Job) (Job, error) {
	j.Source = strings.TrimSpace(j.Source)
	if j.Source == "" {
		return Job{}, errors.InvalidArg("source")
	}
	j.BaseName = strings.TrimSpace(j.BaseName)
	if j.BaseName == "" {
		j.BaseName = source.DefaultBaseName(j.Source)
	}
	if strings.ContainsAny(j.BaseName, `/\`) || j.BaseName == "." || j.BaseName == ".." {
		return Job{}, errors.Input(fmt.Sprintf("invalid base name %q", j.BaseName))
	}
	if j.ChunkLength == 0 {
		j.ChunkLength = DefaultChunkLength
	}
	if j.ChunkLength < time.Millisecond {
		return Job{}, errors.Input(fmt.Sprintf("chunk length must be at least 1ms, got %s", j.ChunkLength))
	}
	j.ChunkLength = j.ChunkLength.Truncate(time.Millisecond)
	if j.Start < 0 || j.End < 0 {
		return Job{}, errors.Input("trim window must not be negative")
	}
	if j.End > 0 && j.End <= j.Start {
		return Job{}, errors.Input(fmt.Sprintf("trim end %s must be after start %s", j.End, j.Start))
	}
	if j.Backend == speech.KindLocal && j.Model == "" {
		j.Model = speech.ModelSmall
	}
	return j, nil
}

// ChunkMS is the chunk length in milliseconds.
func (j Job) ChunkMS() int64 {
	return j.ChunkLength.Milliseconds()
}

// Layout is the cache fingerprint of the job's segmentation parameters.
func (j Job) Layout() string {
	return chunkstore.WindowLayout(j.ChunkMS(), j.Start.Milliseconds(), j.End.Milliseconds())
}

// Key addresses the cached transcript of segment index.
func (j Job) Key(index int) chunkstore.Key {
	return chunkstore.Key{Base: j.BaseName, Layout: j.Layout(), Index: index}
}
