package config

const (
	defaultLogDir        = "~/.local/share/dcmorg/logs"
	defaultExtension     = ".dcm"
	defaultUnknownLabel  = "Unknown"
	defaultConvertBinary = "dcm2niix"
	defaultMinFiles      = 5
	defaultSegmentBinary = "TotalSegmentator"
	defaultGranularity   = GranularityBoth
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	outputDirSuffix      = "_output"
	niftiDirSuffix       = "_nii"
)

// Segmentation batching granularities accepted by segment.granularity.
const (
	GranularityCombined  = "combined"
	GranularityPerTarget = "per_target"
	GranularityBoth      = "both"
)

// DefaultROIs lists the anatomical targets segmented when none are configured.
var DefaultROIs = []string{"spleen", "pancreas", "liver", "kidney_left", "kidney_right"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	rois := make([]string, len(DefaultROIs))
	copy(rois, DefaultROIs)
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Organize: Organize{
			Extension:    defaultExtension,
			UnknownLabel: defaultUnknownLabel,
		},
		Convert: Convert{
			Binary:   defaultConvertBinary,
			MinFiles: defaultMinFiles,
			Compress: true,
		},
		Segment: Segment{
			Binary:      defaultSegmentBinary,
			ROIs:        rois,
			Granularity: defaultGranularity,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
