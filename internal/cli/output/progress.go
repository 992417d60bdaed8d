package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// Progress reports a long-running count. On a terminal it draws a
// progress bar; otherwise it writes one line per update.
type Progress struct {
	r       *Renderer
	message string
	total   int64
	pw      progress.Writer
	tracker *progress.Tracker
}

// StartProgress begins reporting toward total. A zero total is drawn as
// an indeterminate bar.
func (r *Renderer) StartProgress(message string, total int64) *Progress {
	p := &Progress{r: r, message: message, total: total}
	if !r.isTTY || r.EffectiveMode() != ModeText {
		return p
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(r.errOut)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetMessageLength(len(message) + 1)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Speed = true
	pw.Style().Visibility.Value = true

	p.tracker = &progress.Tracker{Message: message, Total: total, Units: progress.UnitsDefault}
	pw.AppendTracker(p.tracker)
	p.pw = pw
	go pw.Render()
	return p
}

// Update sets the current value.
func (p *Progress) Update(n int64) {
	if p.tracker != nil {
		p.tracker.SetValue(n)
		return
	}
	if p.r.EffectiveMode() == ModeJSON {
		return
	}
	if p.total > 0 {
		_, _ = fmt.Fprintf(p.r.errOut, "%s %s / %s\n", p.message, FormatCount(n), FormatCount(p.total))
		return
	}
	_, _ = fmt.Fprintf(p.r.errOut, "%s %s\n", p.message, FormatCount(n))
}

// Done stops the bar. failed marks it as errored.
func (p *Progress) Done(failed bool) {
	if p.pw == nil {
		return
	}
	if failed {
		p.tracker.MarkAsErrored()
	} else {
		p.tracker.MarkAsDone()
	}
	p.pw.Stop()
	for p.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
