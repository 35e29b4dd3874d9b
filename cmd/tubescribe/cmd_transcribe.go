package tubescribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/pipeline"
	"github.com/sjzar/tubescribe/internal/source"
	"github.com/sjzar/tubescribe/internal/tubescribe"
	"github.com/sjzar/tubescribe/pkg/util"
)

var (
	transcribeFlags jobFlags
	runFlags        jobFlags
)

func init() {
	transcribeFlags.bind(transcribeCmd, true)
	runFlags.bind(runCmd, true)
	rootCmd.AddCommand(transcribeCmd, runCmd)
}

var transcribeCmd = &cobra.Command{
	Use:     "transcribe <audio_file> [base_name]",
	Aliases: []string{"a2t"},
	Short:   "Transcribe a local audio file",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if source.IsRemote(args[0]) {
			return errors.Input("transcribe expects a local audio file, use run for URLs")
		}
		return runTranscription(cmd, &transcribeFlags, args)
	},
}

var runCmd = &cobra.Command{
	Use:     "run <url|audio_file> [base_name]",
	Aliases: []string{"y2t"},
	Short:   "Fetch the audio of a video and transcribe it",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscription(cmd, &runFlags, args)
	},
}

func runTranscription(cmd *cobra.Command, f *jobFlags, args []string) error {
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	job, err := f.job(args, cfg.Speech.Backend)
	if err != nil {
		return err
	}

	m := tubescribe.NewManager(cfg, tubescribe.WithObservers(pipeline.NewConsoleObserver(cmd.OutOrStdout())))
	defer m.Close()

	if job, err = m.NewJob(job); err != nil {
		return err
	}
	if err := askReuse(m, &job); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return transcribe(ctx, cmd.OutOrStdout(), m, job)
}

func transcribe(ctx context.Context, out io.Writer, m *tubescribe.Manager, job pipeline.Job) error {
	res, err := m.Run(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Str("job", job.BaseName).Msg("interrupted, finished chunks are cached for the next run")
		}
		return err
	}
	if res.Reused {
		fmt.Fprintf(out, "Using existing transcript %s\n", res.Path)
		return nil
	}
	fmt.Fprintf(out, "Transcript of %d chunks (%d cached) saved to %s\n", res.Chunks, res.Cached, res.Path)
	return nil
}

// askReuse turns the "use existing file?" answers into force flags so the
// pipeline itself never prompts.
func askReuse(m *tubescribe.Manager, job *pipeline.Job) error {
	if !job.Force {
		if p := m.TranscriptPath(*job); util.FileExists(p) {
			ok, err := confirm(fmt.Sprintf("Transcript %s exists, use it", p), true)
			if err != nil {
				return err
			}
			job.Force = !ok
			if ok {
				return nil
			}
		}
	}
	if !job.ForceFetch && source.IsRemote(job.Source) {
		if p, ok := m.AudioPath(*job); ok {
			reuse, err := confirm(fmt.Sprintf("Audio %s exists, use it", p), true)
			if err != nil {
				return err
			}
			job.ForceFetch = !reuse
		}
	}
	return nil
}
