package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"dcmorg/internal/logging"
	"dcmorg/internal/progress"
)

func newTestSession(t *testing.T) (*session, *bytes.Buffer, *cliEnv) {
	t.Helper()
	env := setupCLIEnv(t, "")
	ctx := newCommandContext(&globalFlags{config: env.configPath})
	cmd := &cobra.Command{Use: "test"}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	s, err := ctx.newSession(cmd)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(s.close)
	return s, &stderr, env
}

func TestQuietConsoleKeepsLogFile(t *testing.T) {
	s, stderr, env := newTestSession(t)

	restore := s.quietConsole()
	s.logger.Info("bucket copied while bar drawn")
	s.logger.Warn("slow disk")
	restore()
	s.logger.Info("after bar")

	console := stderr.String()
	if strings.Contains(console, "bucket copied while bar drawn") {
		t.Fatalf("info leaked to console while quiet:\n%s", console)
	}
	requireContains(t, console, "slow disk")
	requireContains(t, console, "after bar")

	data, err := os.ReadFile(filepath.Join(env.logDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	requireContains(t, string(data), "bucket copied while bar drawn")
}

func TestProgressReporterOffTerminalLeavesLevel(t *testing.T) {
	s, _, _ := newTestSession(t)
	var out bytes.Buffer

	reporter, release := s.progressReporter(&out)
	defer release()
	if _, ok := reporter.(*progress.LogReporter); !ok {
		t.Fatalf("expected log reporter for a buffer, got %T", reporter)
	}
	if got := s.consoleLevel.Level(); got != slog.LevelInfo {
		t.Fatalf("console level = %v, want info", got)
	}
}
