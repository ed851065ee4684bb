package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/DawnLiExp/Me2Comic-sub000/core/analyzer"
	"github.com/DawnLiExp/Me2Comic-sub000/core/probe"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input-directory>",
	Short: "Scan and classify directories without converting",
	Long: `Analyze samples the images in each subdirectory and reports how a
conversion run would treat them: spread directories get isolated
priority batches, narrow ones are pooled globally.

Examples:
  me2comic analyze ~/scans/one-piece
  me2comic analyze --width-threshold 2600 ./raw`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&widthThreshold, "width-threshold", 0, "pixel width above which pages are split as spreads")
	analyzeCmd.Flags().IntVar(&highResThreshold, "highres-threshold", 0, "width at which directories skip sharpening (0 disables)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()

	width := cfg.Conversion.WidthThreshold
	if cmd.Flags().Changed("width-threshold") {
		width = widthThreshold
	}
	highRes := cfg.Conversion.HighResThreshold
	if cmd.Flags().Changed("highres-threshold") {
		highRes = highResThreshold
	}

	scan := analyzer.New(probe.NewProber(log), log, width, highRes)
	results, err := scan.Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		pterm.Info.Println("No images found.")
		return nil
	}

	rows := pterm.TableData{{"Directory", "Images", "Category", "Sharpening"}}
	total := 0
	for _, r := range results {
		category := "pooled"
		if r.Category == analyzer.Isolated {
			category = "isolated (spreads)"
		}
		sharpening := "yes"
		if r.HighRes {
			sharpening = "skipped (high-res)"
		}
		rows = append(rows, []string{r.Dir, fmt.Sprint(len(r.Images)), category, sharpening})
		total += len(r.Images)
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Info.Printfln("%d images across %d directories", total, len(results))
	return nil
}
