package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/s0_data"
)

var (
	sentimentLimit int
	sentimentOut   string
	sentimentIn    string
)

// sentimentCmd represents the sentiment command
var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Exchange headlines with the external sentiment scorer",
	Long: `Headlines are scored outside this binary. export writes unscored
headlines as JSON; import reads the same records with "score" in [-1, 1].

Example:
  go run ./cmd/quant sentiment export --out unscored.json
  go run ./cmd/quant sentiment import --file scored.json`,
}

var sentimentExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write unscored headlines as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		items, err := rt.news.UnscoredNews(cmd.Context(), sentimentLimit)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if sentimentOut != "" {
			f, err := os.Create(sentimentOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", sentimentOut, err)
			}
			defer f.Close()
			w = f
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("encode headlines: %w", err)
		}
		if sentimentOut != "" {
			PrintSuccess(fmt.Sprintf("Exported %d headlines to %s", len(items), sentimentOut))
		}
		return nil
	},
}

var sentimentImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store scored headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(sentimentIn)
		if err != nil {
			return fmt.Errorf("open %s: %w", sentimentIn, err)
		}
		defer f.Close()

		scores, err := readScores(f)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		n, err := rt.news.UpdateSentiment(cmd.Context(), scores)
		if err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Updated %d of %d headlines", n, len(scores)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sentimentCmd)
	sentimentCmd.AddCommand(sentimentExportCmd, sentimentImportCmd)

	sentimentExportCmd.Flags().IntVar(&sentimentLimit, "limit", 1000, "maximum headlines to export")
	sentimentExportCmd.Flags().StringVar(&sentimentOut, "out", "", "output file (default stdout)")
	sentimentImportCmd.Flags().StringVar(&sentimentIn, "file", "", "scored JSON file")
	_ = sentimentImportCmd.MarkFlagRequired("file")
}

// readScores decodes scored headlines and rejects scores outside [-1, 1]
func readScores(r io.Reader) ([]s0_data.ScoredHeadline, error) {
	var scores []s0_data.ScoredHeadline
	if err := json.NewDecoder(r).Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	for _, s := range scores {
		if s.ID <= 0 {
			return nil, fmt.Errorf("headline %q: missing id", s.Headline)
		}
		if s.Score < -1 || s.Score > 1 {
			return nil, fmt.Errorf("headline %d: score %.3f outside [-1, 1]", s.ID, s.Score)
		}
	}
	return scores, nil
}
