package tubescribe

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/tubescribe/conf"
)

var (
	cfgFile   string
	logLevel  string
	logJSON   bool
	workDir   string
	assumeYes bool

	cfg *conf.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $HOME/.tubescribe/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", "", "directory holding one folder per job")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every prompt")
}

var rootCmd = &cobra.Command{
	Use:           "tubescribe",
	Short:         "tubescribe turns long audio into text, one chunk at a time",
	Long:          "tubescribe fetches audio from a video URL or a local file, splits it into fixed-length chunks and\ntranscribes each chunk with a hosted API or a local whisper.cpp model. Finished chunks are cached so an\ninterrupted run picks up where it stopped.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := conf.LoadEnv(); err != nil {
			return err
		}
		initLog(logLevel, logJSON)

		c, err := conf.Load(cfgFile)
		if err != nil {
			return err
		}
		if workDir != "" {
			c.WorkDir = workDir
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("tubescribe failed")
		os.Exit(1)
	}
}
