package tubescribe

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/metrics"
	"github.com/sjzar/tubescribe/internal/tubescribe"
	"github.com/sjzar/tubescribe/internal/tubescribe/conf"
	"github.com/sjzar/tubescribe/internal/tubescribe/http"
	"github.com/sjzar/tubescribe/pkg/util"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config, "+conf.DefaultHTTP+")")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transcription pipeline over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.SetHTTPAddr(serveAddr)
		}

		hub := http.NewHub()
		m := metrics.New(prometheus.DefaultRegisterer)
		mgr := tubescribe.NewManager(cfg, tubescribe.WithObservers(hub, m))
		defer mgr.Close()

		svc := http.NewService(cfg, mgr, hub, m)
		if err := svc.Start(); err != nil {
			return err
		}
		log.Info().Str("url", util.ServeURL(cfg.GetHTTPAddr())).Msg("tubescribe API ready")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return svc.Stop()
	},
}
