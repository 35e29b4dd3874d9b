package tubescribe

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/speech"
	"github.com/sjzar/tubescribe/internal/tubescribe"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models [size...]",
	Short: "Download whisper.cpp models ahead of time",
	Long:  "Download the ggml files of the given model sizes (tiny, base, small, medium, large) into speech.model_dir.\nWithout arguments the configured speech.model is fetched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sizes := []speech.ModelSize{cfg.Speech.Model}
		if len(args) > 0 {
			sizes = sizes[:0]
			for _, a := range args {
				size, err := speech.ParseModelSize(a)
				if err != nil {
					return errors.New(errors.ErrInput, err, "invalid model size")
				}
				sizes = append(sizes, size)
			}
		}

		m := tubescribe.NewManager(cfg)
		defer m.Close()

		out := cmd.OutOrStdout()
		for _, size := range sizes {
			res, err := m.EnsureModel(cmd.Context(), size)
			if err != nil {
				return err
			}
			if res.Existed {
				fmt.Fprintf(out, "%s: already at %s\n", size, res.Path)
				continue
			}
			fmt.Fprintf(out, "%s: downloaded to %s\n", size, res.Path)
		}
		return nil
	},
}
