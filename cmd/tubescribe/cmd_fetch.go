package tubescribe

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/pipeline"
	"github.com/sjzar/tubescribe/internal/tubescribe"
)

var fetchFlags jobFlags

func init() {
	fetchFlags.bind(fetchCmd, false)
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:     "fetch <url> [base_name]",
	Aliases: []string{"y2a"},
	Short:   "Download the audio of a video without transcribing it",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := fetchFlags.job(args, cfg.Speech.Backend)
		if err != nil {
			return err
		}
		m := tubescribe.NewManager(cfg, tubescribe.WithObservers(pipeline.NewConsoleObserver(cmd.OutOrStdout())))
		defer m.Close()

		if job, err = m.NewJob(job); err != nil {
			return err
		}
		if !job.ForceFetch {
			if p, ok := m.AudioPath(job); ok && p != job.Source {
				reuse, err := confirm(fmt.Sprintf("Audio %s exists, use it", p), true)
				if err != nil {
					return err
				}
				job.ForceFetch = !reuse
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path, err := m.Fetch(ctx, job)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Audio saved to %s\n", path)

		now, err := confirm("Transcribe it now", false)
		if err != nil || !now {
			return err
		}
		job.ForceFetch = false
		return transcribe(ctx, cmd.OutOrStdout(), m, job)
	},
}
