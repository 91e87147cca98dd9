package config

import (
	"fmt"
	"strings"

	"dcmorg/internal/textutil"
)

// Normalize expands paths, fills derived defaults and canonicalizes enum
// values. Load calls it after decoding; the CLI calls it again after applying
// flag overrides.
func (c *Config) Normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOrganize()
	c.normalizeConvert()
	c.normalizeSegment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.NiftiDir, err = expandPath(strings.TrimSpace(c.Paths.NiftiDir)); err != nil {
		return fmt.Errorf("paths.nifti_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOrganize() {
	ext := strings.TrimSpace(c.Organize.Extension)
	if ext == "" {
		ext = defaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Organize.Extension = strings.ToLower(ext)
	if c.Organize.UnknownLabel == "" {
		c.Organize.UnknownLabel = defaultUnknownLabel
	}
}

func (c *Config) normalizeConvert() {
	c.Convert.Binary = strings.TrimSpace(c.Convert.Binary)
	if c.Convert.Binary == "" {
		c.Convert.Binary = defaultConvertBinary
	}
}

func (c *Config) normalizeSegment() {
	c.Segment.Binary = strings.TrimSpace(c.Segment.Binary)
	if c.Segment.Binary == "" {
		c.Segment.Binary = defaultSegmentBinary
	}
	c.Segment.Granularity = strings.ToLower(strings.TrimSpace(c.Segment.Granularity))
	c.Segment.Granularity = strings.ReplaceAll(c.Segment.Granularity, "-", "_")
	if c.Segment.Granularity == "" {
		c.Segment.Granularity = defaultGranularity
	}
	c.Segment.Device = strings.ToLower(strings.TrimSpace(c.Segment.Device))

	rois := textutil.NormalizeTokens(c.Segment.ROIs)
	if len(rois) == 0 {
		rois = append(rois, DefaultROIs...)
	}
	c.Segment.ROIs = rois
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
