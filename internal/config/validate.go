package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Directory requirements are
// checked per command by the Require helpers because not every command
// needs every tree.
func (c *Config) Validate() error {
	if err := c.validateOrganize(); err != nil {
		return err
	}
	if err := c.validateConvert(); err != nil {
		return err
	}
	if err := c.validateSegment(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireInput reports an error when no input directory is configured.
func (c *Config) RequireInput() error {
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		return errors.New("paths.input_dir must be set (edit the config file or pass --input)")
	}
	if c.Paths.InputDir == c.OrganizedDir() {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	return nil
}

// RequireOrganized reports an error when the organized tree cannot be located.
func (c *Config) RequireOrganized() error {
	if c.OrganizedDir() == "" {
		return errors.New("paths.output_dir or paths.input_dir must be set (edit the config file or pass --input)")
	}
	return nil
}

// RequireNifti reports an error when the NIfTI tree cannot be located.
func (c *Config) RequireNifti() error {
	if c.NiftiRoot() == "" {
		return errors.New("paths.nifti_dir must be set (edit the config file or pass --output)")
	}
	return nil
}

func (c *Config) validateOrganize() error {
	if c.Organize.Extension == "." {
		return errors.New("organize.extension must name a file extension")
	}
	return nil
}

func (c *Config) validateConvert() error {
	if c.Convert.MinFiles < 0 {
		return errors.New("convert.min_files must be >= 0")
	}
	return nil
}

func (c *Config) validateSegment() error {
	switch c.Segment.Granularity {
	case GranularityCombined, GranularityPerTarget, GranularityBoth:
	default:
		return fmt.Errorf("segment.granularity: unsupported value %q (use %s, %s or %s)",
			c.Segment.Granularity, GranularityCombined, GranularityPerTarget, GranularityBoth)
	}
	switch c.Segment.Device {
	case "", "cpu", "gpu", "mps":
	default:
		if !strings.HasPrefix(c.Segment.Device, "gpu:") {
			return fmt.Errorf("segment.device: unsupported value %q", c.Segment.Device)
		}
	}
	if len(c.Segment.ROIs) == 0 {
		return errors.New("segment.rois must include at least one target")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
