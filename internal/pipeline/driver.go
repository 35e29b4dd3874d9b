package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sjzar/tubescribe/internal/audio"
	"github.com/sjzar/tubescribe/internal/chunkstore"
	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/segment"
	"github.com/sjzar/tubescribe/internal/source"
	"github.com/sjzar/tubescribe/internal/speech"
	"github.com/sjzar/tubescribe/pkg/util"
)

// Result describes a finished job.
type Result struct {
	BaseName   string `json:"base_name"`
	Path       string `json:"path"`
	Transcript string `json:"transcript"`
	// Chunks is the segment count; zero when Reused.
	Chunks      int  `json:"chunks"`
	Cached      int  `json:"cached"`
	Transcribed int  `json:"transcribed"`
	Reused      bool `json:"reused"`
	// Texts holds the per-chunk transcripts of a fresh run.
	Texts []string `json:"-"`
}

// Driver runs jobs against one store and one backend. A Driver may run
// several jobs concurrently: identical jobs running at the same time share one
// run, and runs on the same base name take turns.
type Driver struct {
	Store    chunkstore.JobStore
	Backend  speech.Backend
	Provider source.Provider
	// WorkDir holds one directory per job, named after its base name.
	WorkDir string
	// TmpDir receives decoder scratch files; "" uses the system default.
	TmpDir string
	// Workers > 1 transcribes that many chunks in parallel.
	Workers   int
	Observers []Observer
	// Locks is shared by drivers writing to the same WorkDir; nil keeps the
	// serialization local to this driver.
	Locks *Locks

	locks  Locks
	flight singleflight.Group
}

// JobDir is the directory holding the job's audio and transcript.
func (d *Driver) JobDir(job Job) string {
	return filepath.Join(d.WorkDir, job.BaseName)
}

// TranscriptPath is where the final transcript of job is written.
func (d *Driver) TranscriptPath(job Job) string {
	return filepath.Join(d.JobDir(job), job.BaseName+".txt")
}

// Fetch only resolves the job's audio file.
func (d *Driver) Fetch(ctx context.Context, job Job) (string, error) {
	dir := d.JobDir(job)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.New(errors.ErrInput, err, "create job directory")
	}
	return d.Provider.Fetch(ctx, source.Request{
		Source: job.Source,
		Base:   job.BaseName,
		Dir:    dir,
		Force:  job.ForceFetch,
	})
}

// Run executes job to completion. On failure the chunk records written so far
// are kept so the next run resumes after them. A call made while the same job
// is already running waits for that run and returns its outcome.
func (d *Driver) Run(ctx context.Context, job Job) (*Result, error) {
	v, err, shared := d.flight.Do(runKey(job), func() (any, error) {
		unlock := d.baseLocks().Lock(job.BaseName)
		defer unlock()
		return d.run(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("job", job.BaseName).Msg("joined running job")
	}
	return v.(*Result), nil
}

// Reuse returns the finished transcript of job without touching the backend,
// or nil when there is none or the job is forced.
func (d *Driver) Reuse(job Job) (*Result, error) {
	res, err := d.existing(job)
	if err != nil || res == nil {
		return nil, err
	}
	d.setState(job, StateInit)
	d.setState(job, StateDone)
	return res, nil
}

func (d *Driver) existing(job Job) (*Result, error) {
	final := d.TranscriptPath(job)
	if job.Force || !util.FileExists(final) {
		return nil, nil
	}
	data, err := os.ReadFile(final)
	if err != nil {
		return nil, errors.New(errors.ErrInput, err, "read existing transcript")
	}
	log.Info().Str("file", final).Msg("using existing transcript")
	return &Result{BaseName: job.BaseName, Path: final, Transcript: string(data), Reused: true}, nil
}

func runKey(job Job) string {
	return fmt.Sprintf("%s|%s|%s|%t|%t", job.BaseName, job.Layout(), job.Source, job.Force, job.ForceFetch)
}

func (d *Driver) baseLocks() *Locks {
	if d.Locks != nil {
		return d.Locks
	}
	return &d.locks
}

func (d *Driver) run(ctx context.Context, job Job) (res *Result, err error) {
	start := time.Now()
	d.setState(job, StateInit)
	defer func() {
		if err != nil {
			d.setState(job, StateFailed)
			log.Err(err).Str("job", job.BaseName).Msg("transcription job failed")
			return
		}
		d.setState(job, StateDone)
		log.Info().
			Str("job", job.BaseName).
			Str("transcript", res.Path).
			Int("chunks", res.Chunks).
			Int("transcribed", res.Transcribed).
			Bool("reused", res.Reused).
			Dur("elapsed", time.Since(start)).
			Msg("transcription job done")
	}()

	if res, err := d.existing(job); err != nil || res != nil {
		return res, err
	}
	final := d.TranscriptPath(job)

	if d.Store == nil || d.Backend == nil || d.Provider == nil {
		return nil, errors.Input("driver is missing a store, backend or provider")
	}

	path, err := d.Fetch(ctx, job)
	if err != nil {
		return nil, err
	}

	d.setState(job, StateSegmenting)
	segs, err := d.segments(ctx, job, path)
	if err != nil {
		return nil, err
	}

	resume, err := d.prepareCache(job, len(segs))
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("job", job.BaseName).
		Str("backend", d.Backend.Name()).
		Int("chunks", len(segs)).
		Int("resume", resume).
		Msg("processing chunks")

	res = &Result{BaseName: job.BaseName, Path: final, Chunks: len(segs)}
	texts := make([]string, len(segs))
	for i := 0; i < resume; i++ {
		text, err := d.Store.Read(job.Key(i))
		if errors.Is(err, errors.ErrNotFound) {
			// Deleted since the scan: not transcribed yet.
			log.Warn().Str("job", job.BaseName).Int("chunk", i).Msg("cached chunk vanished, resuming from it")
			if err := d.discardFrom(job, i); err != nil {
				return nil, err
			}
			resume = i
			break
		}
		if err != nil {
			return nil, err
		}
		texts[i] = text
		res.Cached++
		d.setState(job, StateCached)
		d.chunkDone(job, ChunkEvent{
			Index: i, Total: len(segs), StartMS: segs[i].StartMS, EndMS: segs[i].EndMS,
			Cached: true, Text: text,
		})
	}

	if err := d.transcribeFrom(ctx, job, segs, resume, texts); err != nil {
		return nil, err
	}
	res.Transcribed = len(segs) - resume

	d.setState(job, StateReassembling)
	parts, err := d.reassemble(job, len(segs))
	if err != nil {
		return nil, err
	}
	transcript := strings.Join(parts, "\n")
	if err := util.WriteFileAtomic(final, []byte(transcript), 0o644); err != nil {
		return nil, errors.New(errors.ErrInput, err, "write transcript")
	}
	res.Transcript = transcript
	res.Texts = parts

	if err := d.Store.Purge(job.BaseName); err != nil {
		log.Warn().Err(err).Str("job", job.BaseName).Msg("failed to clean up chunk files")
	}
	return res, nil
}

func (d *Driver) segments(ctx context.Context, job Job, path string) ([]segment.Segment, error) {
	buf, err := audio.Load(ctx, path, d.TmpDir)
	if err != nil {
		return nil, err
	}
	if job.Start > 0 || job.End > 0 {
		end := buf.DurationMS()
		if job.End > 0 && job.End.Milliseconds() < end {
			end = job.End.Milliseconds()
		}
		buf = buf.Slice(job.Start.Milliseconds(), end)
	}
	segs, err := segment.Split(buf, job.ChunkMS())
	if err != nil {
		return nil, errors.New(errors.ErrInput, err, "segment audio")
	}
	if len(segs) == 0 {
		return nil, errors.Input("audio has zero duration: " + path)
	}
	return segs, nil
}

// prepareCache drops records that cannot be reused and returns the resume
// point: the number of contiguous records from index 0.
func (d *Driver) prepareCache(job Job, total int) (int, error) {
	layout := job.Layout()
	stale, err := d.Store.StaleKeys(job.BaseName, layout)
	if err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		log.Warn().
			Err(errors.ErrStaleCache).
			Str("job", job.BaseName).
			Int("records", len(stale)).
			Msg("stale chunk cache from a different segmentation, discarding")
		for _, k := range stale {
			if err := d.Store.Delete(k); err != nil {
				return 0, err
			}
		}
	}

	keys, err := d.Store.ListKeys(job.BaseName, layout)
	if err != nil {
		return 0, err
	}
	if job.Force {
		for _, k := range keys {
			if err := d.Store.Delete(k); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}

	resume := 0
	for resume < total {
		ok, err := d.Store.Exists(job.Key(resume))
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		resume++
	}

	// Records past the first gap belong to an incomplete run; they are
	// transcribed again rather than trusted.
	if err := d.deleteFrom(keys, resume); err != nil {
		return 0, err
	}
	return resume, nil
}

// discardFrom deletes the job's records at or after index from.
func (d *Driver) discardFrom(job Job, from int) error {
	keys, err := d.Store.ListKeys(job.BaseName, job.Layout())
	if err != nil {
		return err
	}
	return d.deleteFrom(keys, from)
}

func (d *Driver) deleteFrom(keys []chunkstore.Key, from int) error {
	for _, k := range keys {
		if k.Index < from {
			continue
		}
		if err := d.Store.Delete(k); err != nil {
			return err
		}
		log.Debug().Str("key", k.String()).Msg("discarding chunk record past resume point")
	}
	return nil
}

func (d *Driver) transcribeFrom(ctx context.Context, job Job, segs []segment.Segment, from int, texts []string) error {
	workers := d.Workers
	if workers <= 1 {
		for i := from; i < len(segs); i++ {
			text, err := d.transcribeChunk(ctx, job, segs[i], len(segs))
			if err != nil {
				return err
			}
			texts[i] = text
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := from; i < len(segs); i++ {
		seg := segs[i]
		g.Go(func() error {
			text, err := d.transcribeChunk(gctx, job, seg, len(segs))
			if err != nil {
				return err
			}
			texts[seg.Index] = text
			return nil
		})
	}
	return g.Wait()
}

func (d *Driver) transcribeChunk(ctx context.Context, job Job, seg segment.Segment, total int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := job.Key(seg.Index)
	start := time.Now()

	d.setState(job, StateTranscribing)
	text, err := d.transcribeClip(ctx, key, seg)
	if err != nil {
		return "", err
	}

	log.Debug().Str("job", job.BaseName).Str("span", seg.Span.String()).Dur("elapsed", time.Since(start)).Msg("chunk transcribed")
	d.chunkDone(job, ChunkEvent{
		Index: seg.Index, Total: total, StartMS: seg.StartMS, EndMS: seg.EndMS,
		Text: text, Elapsed: time.Since(start),
	})
	return text, nil
}

func (d *Driver) transcribeClip(ctx context.Context, key chunkstore.Key, seg segment.Segment) (string, error) {
	clipPath, err := d.Store.WriteAudio(key, seg.Audio)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := d.Store.DeleteAudio(key); err != nil {
			log.Debug().Err(err).Str("key", key.String()).Msg("failed to delete chunk audio")
		}
	}()

	text, err := d.Backend.Transcribe(ctx, speech.Clip{Index: seg.Index, Path: clipPath, Audio: seg.Audio})
	if err != nil {
		if errors.Is(err, errors.ErrTranscription) || errors.Is(err, errors.ErrUnavailableBackend) {
			return "", err
		}
		return "", errors.Transcription(seg.Index, err)
	}
	if err := d.Store.Write(key, text); err != nil {
		return "", err
	}
	return text, nil
}

// reassemble reads every record in index order. A missing record fails the
// job rather than producing a transcript with a hole.
func (d *Driver) reassemble(job Job, total int) ([]string, error) {
	parts := make([]string, total)
	for i := range parts {
		text, err := d.Store.Read(job.Key(i))
		if err != nil {
			return nil, fmt.Errorf("reassemble chunk %d: %w", i, err)
		}
		parts[i] = text
	}
	return parts, nil
}

func (d *Driver) setState(job Job, s State) {
	for _, o := range d.Observers {
		o.StateChanged(job, s)
	}
}

func (d *Driver) chunkDone(job Job, ev ChunkEvent) {
	for _, o := range d.Observers {
		o.ChunkDone(job, ev)
	}
}
