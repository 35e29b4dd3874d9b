package tubescribe

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/pipeline"
	"github.com/sjzar/tubescribe/internal/tubescribe"
	"github.com/sjzar/tubescribe/internal/watch"
)

var watchFlags jobFlags

func init() {
	watchFlags.bind(watchCmd, true)
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [inbox_dir]",
	Short: "Transcribe every audio file dropped into a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Watch.Inbox
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "" {
			return errors.Input("no inbox directory, pass one or set watch.inbox")
		}
		if watchFlags.workers > 0 {
			cfg.Workers = watchFlags.workers
		}

		m := tubescribe.NewManager(cfg, tubescribe.WithObservers(pipeline.NewConsoleObserver(cmd.OutOrStdout())))
		defer m.Close()

		inbox := &watch.Inbox{
			Dir:      dir,
			Debounce: cfg.Watch.Debounce,
			Handle: func(ctx context.Context, path string) error {
				job, err := watchFlags.job([]string{path}, cfg.Speech.Backend)
				if err != nil {
					return err
				}
				if job, err = m.NewJob(job); err != nil {
					return err
				}
				return transcribe(ctx, cmd.OutOrStdout(), m, job)
			},
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return inbox.Run(ctx)
	},
}
