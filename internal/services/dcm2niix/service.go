package dcm2niix

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dcmorg/internal/services"
)

const stageName = "converting"

// folderNameFormat is the dcm2niix -f directive for the input folder name.
const folderNameFormat = "%f"

// maxOutputTail bounds how much tool output is carried in an error.
const maxOutputTail = 2048

// Service runs dcm2niix.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a converter service.
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

// OutputPath returns the volume path Convert produces for seriesDir.
func (s *Service) OutputPath(seriesDir, outDir string) string {
	return filepath.Join(outDir, filepath.Base(filepath.Clean(seriesDir))+s.cfg.Extension())
}

// Convert turns seriesDir into outDir/<base(seriesDir)>.nii.gz and returns
// the volume path. outDir is created when missing.
func (s *Service) Convert(ctx context.Context, seriesDir, outDir string) (string, error) {
	seriesDir = filepath.Clean(seriesDir)
	info, err := os.Stat(seriesDir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "open series", seriesDir, err)
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrValidation, stageName, "open series", seriesDir+" is not a directory", nil)
	}
	if strings.TrimSpace(outDir) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "convert", "output directory required", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrFilesystem, stageName, "create output directory", outDir, err)
	}

	if err := s.run(ctx, s.cfg.Binary, s.BuildArgs(outDir, seriesDir)...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, stageName, "dcm2niix", seriesDir, err)
	}

	volume := s.OutputPath(seriesDir, outDir)
	if _, err := os.Stat(volume); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "verify output", "dcm2niix produced no "+filepath.Base(volume), err)
	}
	return volume, nil
}

// BuildArgs returns the dcm2niix argument list. The file name uses the %f
// directive (input folder name) so '%' in series labels is never parsed as a
// format directive.
func (s *Service) BuildArgs(outDir, seriesDir string) []string {
	compress := "n"
	if s.cfg.Compress {
		compress = "y"
	}
	return []string{"-z", compress, "-b", "n", "-f", folderNameFormat, "-o", outDir, seriesDir}
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output)))
	}
	return nil
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > maxOutputTail {
		output = "..." + output[len(output)-maxOutputTail:]
	}
	return output
}
