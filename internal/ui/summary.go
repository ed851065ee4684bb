package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"

	"github.com/DawnLiExp/Me2Comic-sub000/core/coordinator"
)

// PrintSummary renders the run outcome after the progress bar stops.
func PrintSummary(s *coordinator.Summary) {
	pterm.Println()
	if len(s.Failed) == 0 {
		pterm.Success.Printfln("Converted %d images into %d pages in %s",
			s.Processed, s.OutputPages, s.Elapsed.Round(time.Millisecond))
	} else {
		pterm.Warning.Printfln("Converted %d of %d images (%d failed) in %s",
			s.Processed, s.TotalImages, len(s.Failed), s.Elapsed.Round(time.Millisecond))
	}

	rows := pterm.TableData{{"Directory", "Images"}}
	dirs := make([]string, 0, len(s.PerDirectory))
	for dir := range s.PerDirectory {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		rows = append(rows, []string{dir, fmt.Sprint(s.PerDirectory[dir])})
	}
	if s.GlobalCount > 0 {
		rows = append(rows, []string{"(pooled)", fmt.Sprint(s.GlobalCount)})
	}
	if len(rows) > 1 {
		pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}

	if len(s.Failed) > 0 {
		pterm.Println()
		pterm.Error.Printfln("Failed images:")
		for _, path := range s.Failed {
			pterm.Printfln("  %s", path)
		}
	}
}

// PrintHistory renders past run records, newest first.
func PrintHistory(rows [][]string) {
	if len(rows) == 0 {
		pterm.Info.Println("No recorded runs.")
		return
	}
	data := pterm.TableData{{"Started", "Input", "Images", "Pages", "Failed", "Elapsed"}}
	data = append(data, rows...)
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
