package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const dcm2niixStub = `#!/bin/sh
name=""
out=""
in=""
while [ $# -gt 0 ]; do
  case "$1" in
    -f) name="$2"; shift 2 ;;
    -o) out="$2"; shift 2 ;;
    -z|-b) shift 2 ;;
    *) in="$1"; shift ;;
  esac
done
if [ "$name" = "%f" ]; then name=$(basename "$in"); fi
: > "$out/$name.nii.gz"
`

const failingStub = `#!/bin/sh
echo "conversion failed" >&2
exit 1
`

const totalSegmentatorStub = `#!/bin/sh
out=""
ml=0
rois=""
state=""
for arg in "$@"; do
  case "$state" in
    skip) state=""; continue ;;
    out) out="$arg"; state=""; continue ;;
  esac
  case "$arg" in
    -i|--device) state=skip ;;
    -o) state=out ;;
    --ml) ml=1 ;;
    --roi_subset) state=rois ;;
    --*) ;;
    *) if [ "$state" = rois ]; then rois="$rois $arg"; fi ;;
  esac
done
if [ "$ml" = 1 ]; then
  : > "$out"
else
  for r in $rois; do : > "$out/$r.nii.gz"; done
fi
`

type cliEnv struct {
	base       string
	configPath string
	inputDir   string
	outputDir  string
	niftiDir   string
	logDir     string
}

// setupCLIEnv writes a config file pointing every tree into a temp dir and
// isolates HOME so no user config is picked up.
func setupCLIEnv(t *testing.T, extra string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Chdir(base)

	env := &cliEnv{
		base:       base,
		configPath: filepath.Join(base, "dcmorg-test.toml"),
		inputDir:   filepath.Join(base, "input"),
		outputDir:  filepath.Join(base, "organized"),
		niftiDir:   filepath.Join(base, "nii"),
		logDir:     filepath.Join(base, "logs"),
	}
	if err := os.MkdirAll(env.inputDir, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	content := fmt.Sprintf(`[paths]
input_dir = %q
output_dir = %q
nifti_dir = %q
log_dir = %q
%s`, env.inputDir, env.outputDir, env.niftiDir, env.logDir, extra)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func installStub(t *testing.T, name, script string) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", needle, haystack)
	}
}

func requireExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func requireMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent, stat err=%v", path, err)
	}
}
