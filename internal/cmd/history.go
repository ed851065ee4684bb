package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DawnLiExp/Me2Comic-sub000/internal/history"
	"github.com/DawnLiExp/Me2Comic-sub000/internal/ui"
)

var (
	historyLimit int
	historyKeep  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded conversion runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	historyCmd.Flags().IntVar(&historyKeep, "prune", -1, "delete all but the newest N runs before listing")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()
	store, err := history.Open(cfg.History.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if historyKeep >= 0 {
		if err := store.Prune(historyKeep); err != nil {
			return err
		}
	}

	records, err := store.List(historyLimit)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			rec.InputRoot,
			fmt.Sprintf("%d/%d", rec.Processed, rec.TotalImages),
			fmt.Sprint(rec.OutputPages),
			fmt.Sprint(len(rec.Failed)),
			rec.Elapsed.Round(time.Second).String(),
		})
	}
	ui.PrintHistory(rows)
	return nil
}
