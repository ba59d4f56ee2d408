package tui

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"resizer/internal/processor"
)

// Plain is the non-interactive observer: log lines go to out and a
// progress bar is drawn on status, typically stderr.
type Plain struct {
	out    io.Writer
	status io.Writer
	bar    *progressbar.ProgressBar
}

var _ processor.Observer = (*Plain)(nil)

func NewPlain(out, status io.Writer) *Plain {
	return &Plain{out: out, status: status}
}

func (p *Plain) OnLog(line string) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintln(p.out, line)
}

func (p *Plain) OnProgress(completed, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.status),
			progressbar.OptionSetDescription("Resizing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(0),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(completed)
}

func (p *Plain) OnFinished(processor.Summary) {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
