package progress

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dcmorg/internal/logging"
)

func TestLogReporterSamplesProgress(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "info", "console")
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	r := NewLogReporter(logger)
	r.Start("Processing subjects", 40)
	for i := 0; i < 40; i++ {
		r.Advance()
	}
	r.Finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 0%, then every 10% bucket up to 100%.
	if len(lines) != 11 {
		t.Fatalf("expected 11 sampled lines, got %d:\n%s", len(lines), buf.String())
	}
	last := lines[len(lines)-1]
	if !strings.Contains(last, "done=40") || !strings.Contains(last, "total=40") {
		t.Fatalf("unexpected final line %q", last)
	}
}

func TestLogReporterEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "info", "console")
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	r := NewLogReporter(logger)
	r.Start("Processing subjects", 0)
	r.Finish()
	if !strings.Contains(buf.String(), "percent=100") {
		t.Fatalf("expected empty batch to report completion, got %q", buf.String())
	}
}

func TestNewFallsBackToLogsForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := New(&buf, nil).(*LogReporter); !ok {
		t.Fatal("expected log reporter for a buffer")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Fatal("regular file must not be treated as a terminal")
	}
}

func TestTerminalRendersTracker(t *testing.T) {
	var buf syncBuffer
	r := NewTerminal(&buf)
	r.Start("Converting subjects", 3)
	r.Advance()
	r.Advance()
	r.Advance()
	r.Finish()
	// A second Finish is a no-op.
	r.Finish()

	if !strings.Contains(buf.String(), "Converting subjects") {
		t.Fatalf("expected tracker message in output, got %q", buf.String())
	}
}

func TestNopReporter(t *testing.T) {
	var r Reporter = Nop{}
	r.Start("x", 1)
	r.Advance()
	r.Finish()
}
