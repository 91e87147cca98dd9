package progress

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

const (
	renderPoll    = 5 * time.Millisecond
	renderTimeout = 2 * time.Second
)

// Terminal draws a single go-pretty tracker. The writer renders on its own
// goroutine; callers only touch the tracker counters.
type Terminal struct {
	out     io.Writer
	writer  progress.Writer
	tracker *progress.Tracker
}

// NewTerminal returns a Terminal drawing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Start(label string, total int) {
	t.Finish()

	pw := progress.NewWriter()
	pw.SetOutputWriter(t.out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true

	tracker := &progress.Tracker{Message: label, Total: int64(total), Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)
	go pw.Render()
	waitFor(func() bool { return pw.IsRenderInProgress() })

	t.writer = pw
	t.tracker = tracker
}

func (t *Terminal) Advance() {
	if t.tracker != nil {
		t.tracker.Increment(1)
	}
}

func (t *Terminal) Finish() {
	if t.writer == nil {
		return
	}
	t.tracker.MarkAsDone()
	pw := t.writer
	pw.Stop()
	waitFor(func() bool { return !pw.IsRenderInProgress() })
	t.writer = nil
	t.tracker = nil
}

func waitFor(cond func() bool) {
	deadline := time.Now().Add(renderTimeout)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(renderPoll)
	}
}
