package totalseg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dcmorg/internal/services"
)

// DefaultBinary is the executable looked up on PATH when none is configured.
const DefaultBinary = "TotalSegmentator"

const (
	stageName     = "segmenting"
	maxOutputTail = 2048
)

// Config holds TotalSegmentator settings shared by every call.
type Config struct {
	Binary string
	// Device is passed through as --device when set (cpu, gpu, gpu:N, mps).
	Device string
	Fast   bool
}

// Request is one TotalSegmentator invocation.
type Request struct {
	Input string
	// Output is a file path when MultiLabel is set and a directory otherwise.
	Output     string
	ROIs       []string
	MultiLabel bool
}

// Service runs TotalSegmentator.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a segmentation service.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Binary returns the configured executable.
func (s *Service) Binary() string {
	return s.cfg.Binary
}

// Segment runs one TotalSegmentator call. The parent of a multi-label output
// file, or the output directory itself, is created first.
func (s *Service) Segment(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrValidation, stageName, "segment", "input and output required", nil)
	}
	if len(req.ROIs) == 0 {
		return services.Wrap(services.ErrValidation, stageName, "segment", "at least one roi required", nil)
	}
	if _, err := os.Stat(req.Input); err != nil {
		return services.Wrap(services.ErrNotFound, stageName, "open volume", req.Input, err)
	}
	dir := req.Output
	if req.MultiLabel {
		dir = filepath.Dir(req.Output)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "create output directory", dir, err)
	}
	if err := s.run(ctx, s.cfg.Binary, s.BuildArgs(req)...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, stageName, "TotalSegmentator", req.Input, err)
	}
	return nil
}

// BuildArgs returns the TotalSegmentator argument list for req.
func (s *Service) BuildArgs(req Request) []string {
	args := []string{"-i", req.Input, "-o", req.Output, "--roi_subset"}
	args = append(args, req.ROIs...)
	if req.MultiLabel {
		args = append(args, "--ml")
	}
	if device := strings.TrimSpace(s.cfg.Device); device != "" {
		args = append(args, "--device", device)
	}
	if s.cfg.Fast {
		args = append(args, "--fast")
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		out := strings.TrimSpace(string(output))
		if len(out) > maxOutputTail {
			out = "..." + out[len(out)-maxOutputTail:]
		}
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}
