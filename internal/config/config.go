package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory trees the pipeline reads and writes.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	NiftiDir  string `toml:"nifti_dir"`
	LogDir    string `toml:"log_dir"`
}

// Organize contains settings for grouping slice files into series buckets.
type Organize struct {
	// Extension selects slice files; matching is case-insensitive.
	Extension string `toml:"extension"`
	// UnknownLabel replaces a missing SeriesDescription.
	UnknownLabel string `toml:"unknown_label"`
}

// Convert contains settings for DICOM to NIfTI conversion.
type Convert struct {
	Binary string `toml:"binary"`
	// MinFiles is the number of entries a subject folder needs before it is
	// converted; smaller folders are treated as incomplete.
	MinFiles int  `toml:"min_files"`
	Compress bool `toml:"compress"`
}

// Segment contains settings for the segmentation model.
type Segment struct {
	Binary      string   `toml:"binary"`
	ROIs        []string `toml:"rois"`
	Granularity string   `toml:"granularity"`
	Device      string   `toml:"device"`
	Fast        bool     `toml:"fast"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dcmorg.
//
// Configuration sections by subsystem:
//   - Paths: input, organized output, NIfTI output and log directories
//   - Organize: slice-file extension and the label used for missing descriptions
//   - Convert: dcm2niix binary and the incomplete-subject threshold
//   - Segment: TotalSegmentator binary, targets and batching granularity
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Organize Organize `toml:"organize"`
	Convert  Convert  `toml:"convert"`
	Segment  Segment  `toml:"segment"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dcmorg/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dcmorg.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// OrganizedDir returns the organized tree root. An empty paths.output_dir
// resolves to "<input_dir>_output".
func (c *Config) OrganizedDir() string {
	if c.Paths.OutputDir != "" {
		return c.Paths.OutputDir
	}
	if c.Paths.InputDir == "" {
		return ""
	}
	return c.Paths.InputDir + outputDirSuffix
}

// NiftiRoot returns the NIfTI tree root. An empty paths.nifti_dir resolves to
// "<organized dir>_nii".
func (c *Config) NiftiRoot() string {
	if c.Paths.NiftiDir != "" {
		return c.Paths.NiftiDir
	}
	organized := c.OrganizedDir()
	if organized == "" {
		return ""
	}
	return organized + niftiDirSuffix
}

// EnsureDirectories creates the directories dcmorg writes to. The input
// directory is never created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.OrganizedDir(), c.NiftiRoot(), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Dcm2niixBinary returns the conversion executable name.
func (c *Config) Dcm2niixBinary() string {
	if b := strings.TrimSpace(c.Convert.Binary); b != "" {
		return b
	}
	return defaultConvertBinary
}

// TotalSegmentatorBinary returns the segmentation executable name.
func (c *Config) TotalSegmentatorBinary() string {
	if b := strings.TrimSpace(c.Segment.Binary); b != "" {
		return b
	}
	return defaultSegmentBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
