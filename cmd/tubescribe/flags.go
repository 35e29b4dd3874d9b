package tubescribe

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/pipeline"
	"github.com/sjzar/tubescribe/internal/speech"
	"github.com/sjzar/tubescribe/pkg/util"
)

// jobFlags are the flags shared by fetch, transcribe and run.
type jobFlags struct {
	whisper         string
	backend         string
	chunkLength     time.Duration
	forceDownload   bool
	forceTranscribe bool
	start           string
	end             string
	workers         int
}

func (f *jobFlags) bind(cmd *cobra.Command, transcribe bool) {
	fs := cmd.Flags()
	fs.BoolVar(&f.forceDownload, "force-download", false, "download the audio again even if it exists")
	if !transcribe {
		return
	}
	fs.StringVar(&f.whisper, "whisper", "", "transcribe locally with whisper.cpp: tiny|base|small|medium|large")
	fs.StringVarP(&f.backend, "backend", "b", "", "transcription backend: remote|local (default from config)")
	fs.DurationVar(&f.chunkLength, "chunk-length", 0, "chunk length, e.g. 60s (default from config)")
	fs.BoolVar(&f.forceTranscribe, "force-transcribe", false, "ignore the existing transcript and cached chunks")
	fs.StringVar(&f.start, "start", "", "skip audio before this time (mm:ss, hh:mm:ss or seconds)")
	fs.StringVar(&f.end, "end", "", "drop audio after this time (mm:ss, hh:mm:ss or seconds)")
	fs.IntVar(&f.workers, "workers", 0, "chunks transcribed in parallel (default from config)")
}

// job builds the job of a "source [base_name]" invocation. Unset flags fall
// back to def, the configured backend.
func (f *jobFlags) job(args []string, def speech.Kind) (pipeline.Job, error) {
	j := pipeline.Job{
		Source:      args[0],
		Backend:     def,
		ChunkLength: f.chunkLength,
		Force:       f.forceTranscribe,
		ForceFetch:  f.forceDownload,
	}
	if len(args) > 1 {
		j.BaseName = args[1]
	}
	if f.backend != "" {
		kind, err := speech.ParseKind(f.backend)
		if err != nil {
			return pipeline.Job{}, errors.New(errors.ErrInput, err, "invalid --backend")
		}
		j.Backend = kind
	}
	if f.whisper != "" {
		size, err := speech.ParseModelSize(f.whisper)
		if err != nil {
			return pipeline.Job{}, errors.New(errors.ErrInput, err, "invalid --whisper")
		}
		j.Backend = speech.KindLocal
		j.Model = size
	}

	var err error
	if j.Start, err = util.ParseTimecode(f.start); err != nil {
		return pipeline.Job{}, errors.New(errors.ErrInput, err, "invalid --start")
	}
	if j.End, err = util.ParseTimecode(f.end); err != nil {
		return pipeline.Job{}, errors.New(errors.ErrInput, err, "invalid --end")
	}
	return j, nil
}
