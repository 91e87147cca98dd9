package dcm2niix

// DefaultBinary is the executable looked up on PATH when none is configured.
const DefaultBinary = "dcm2niix"

// Config holds converter settings.
type Config struct {
	Binary string
	// Compress selects .nii.gz output (-z y) instead of .nii.
	Compress bool
}

// Extension returns the volume file extension produced for cfg.
func (c Config) Extension() string {
	if c.Compress {
		return ".nii.gz"
	}
	return ".nii"
}
