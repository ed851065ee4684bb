// Package ui renders run progress and summaries to the terminal.
package ui

import (
	"os"
	"sync"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Progress is a live progress bar fed by the coordinator. It is safe
// for concurrent use; worker goroutines report completions as they
// land.
type Progress struct {
	mutex  sync.Mutex
	bar    *pterm.ProgressbarPrinter
	silent bool
}

// NewProgress creates a progress renderer. Silent mode swallows all
// updates, for scripted runs or non-terminal output.
func NewProgress(silent bool) *Progress {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		silent = true
	}
	return &Progress{silent: silent}
}

// Progress implements the coordinator's reporter interface. The bar is
// created lazily on the first report so the total is known by then.
func (p *Progress) Progress(processed, total int) {
	if p.silent {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Converting").
			WithMaxWidth(terminalWidth()).
			Start()
		if err != nil {
			p.silent = true
			return
		}
		bar.BarStyle = &pterm.Style{pterm.FgLightBlue, pterm.BgDefault}
		bar.TitleStyle = &pterm.Style{pterm.FgLightCyan, pterm.Bold}
		bar.BarCharacter = "█"
		bar.LastCharacter = "█"
		bar.ShowCount = true
		bar.ShowElapsedTime = true
		p.bar = bar
	}

	if processed > p.bar.Current {
		p.bar.Add(processed - p.bar.Current)
	}
}

// Stop finishes the bar if one was started.
func (p *Progress) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.bar != nil {
		p.bar.Stop()
		p.bar = nil
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
