package progress

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"dcmorg/internal/logging"
)

// Reporter receives batch progress. Start is called once with the number of
// steps, Advance once per completed step, and Finish when the batch ends
// (including early termination).
type Reporter interface {
	Start(label string, total int)
	Advance()
	Finish()
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(string, int) {}

func (Nop) Advance() {}

func (Nop) Finish() {}

// New picks a terminal bar when w is an interactive terminal and a
// log-backed reporter otherwise.
func New(w io.Writer, logger *slog.Logger) Reporter {
	if IsTerminal(w) {
		return NewTerminal(w)
	}
	return NewLogReporter(logger)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// LogReporter writes progress as info log lines, sampled to every tenth of the
// batch.
type LogReporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	label   string
	total   int
	done    int
}

// NewLogReporter builds a LogReporter. A nil logger discards output.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(10),
	}
}

func (r *LogReporter) Start(label string, total int) {
	r.label = label
	r.total = total
	r.done = 0
	r.sampler.Reset()
	r.emit()
}

func (r *LogReporter) Advance() {
	r.done++
	r.emit()
}

func (r *LogReporter) Finish() {}

func (r *LogReporter) emit() {
	if !r.sampler.ShouldLog(r.label, r.done, r.total) {
		return
	}
	r.logger.Info(r.label,
		logging.Int("done", r.done),
		logging.Int("total", r.total),
		logging.Int("percent", logging.Percent(r.done, r.total)),
	)
}
