package rag

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ProgressReporter receives bulk-rebuild progress.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

// RebuildProgress renders a terminal progress bar during index rebuilds.
type RebuildProgress struct {
	enabled bool
	bar     *progressbar.ProgressBar
}

// NewRebuildProgress returns a reporter, or nil when disabled.
func NewRebuildProgress(enabled bool) ProgressReporter {
	if !enabled {
		return nil
	}
	return &RebuildProgress{enabled: true}
}

func (p *RebuildProgress) Start(total int) {
	if !p.enabled || total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("rebuilding"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *RebuildProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *RebuildProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// DefaultProgressEnabled reports whether stderr is a terminal.
func DefaultProgressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
