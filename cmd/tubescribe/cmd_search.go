package tubescribe

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjzar/tubescribe/internal/index"
	"github.com/sjzar/tubescribe/internal/tubescribe"
	"github.com/sjzar/tubescribe/pkg/util"
)

var (
	searchBases  string
	searchLimit  int
	searchOffset int
)

func init() {
	searchCmd.Flags().StringVar(&searchBases, "base", "", "only search these jobs (comma separated base names)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of hits")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "skip this many hits")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search finished transcripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := tubescribe.NewManager(cfg)
		defer m.Close()

		hits, total, err := m.Search(index.SearchRequest{
			Query:  strings.Join(args, " "),
			Bases:  util.Str2List(searchBases, ","),
			Offset: searchOffset,
			Limit:  searchLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, h := range hits {
			text := h.Snippet
			if text == "" {
				text = h.Text
			}
			at := util.FormatTimecode(time.Duration(h.StartMS) * time.Millisecond)
			fmt.Fprintf(out, "%s #%d [%s] %s\n", h.Base, h.Chunk, at, text)
		}
		fmt.Fprintf(out, "%d of %d hits\n", len(hits), total)
		return nil
	},
}
