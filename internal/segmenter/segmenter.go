package segmenter

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dcmorg/internal/config"
	"dcmorg/internal/fileutil"
	"dcmorg/internal/logging"
	"dcmorg/internal/progress"
	"dcmorg/internal/runlock"
	"dcmorg/internal/services"
	"dcmorg/internal/services/totalseg"
)

const (
	stageName    = "segmenting"
	volumeSuffix = ".nii.gz"
	maskSuffix   = "_mask.nii.gz"
)

// volumeSuffixes are tried in order; dcm2niix writes .nii when compression
// is off.
var volumeSuffixes = []string{volumeSuffix, ".nii"}

// Runner executes one TotalSegmentator request.
type Runner interface {
	Segment(ctx context.Context, req totalseg.Request) error
}

// Options configures a Segmenter.
type Options struct {
	Runner      Runner
	ROIs        []string
	Granularity string
	Progress    progress.Reporter
	Logger      *slog.Logger
}

// Segmenter produces anatomical masks next to each volume.
type Segmenter struct {
	runner      Runner
	rois        []string
	granularity string
	progress    progress.Reporter
	logger      *slog.Logger
}

// New constructs a Segmenter.
func New(opts Options) *Segmenter {
	if opts.Runner == nil {
		opts.Runner = totalseg.NewService(totalseg.Config{})
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	if strings.TrimSpace(opts.Granularity) == "" {
		opts.Granularity = config.GranularityBoth
	}
	return &Segmenter{
		runner:      opts.Runner,
		rois:        NormalizeROIs(opts.ROIs),
		granularity: opts.Granularity,
		progress:    opts.Progress,
		logger:      logging.NewComponentLogger(opts.Logger, "segmenter"),
	}
}

// NewFromConfig wires a TotalSegmentator service from the segment section.
func NewFromConfig(cfg *config.Config, reporter progress.Reporter, logger *slog.Logger) *Segmenter {
	return New(Options{
		Runner: totalseg.NewService(totalseg.Config{
			Binary: cfg.TotalSegmentatorBinary(),
			Device: cfg.Segment.Device,
			Fast:   cfg.Segment.Fast,
		}),
		ROIs:        cfg.Segment.ROIs,
		Granularity: cfg.Segment.Granularity,
		Progress:    reporter,
		Logger:      logger,
	})
}

// ROIs returns the normalized targets.
func (s *Segmenter) ROIs() []string {
	out := make([]string, len(s.rois))
	copy(out, s.rois)
	return out
}

// CombinedMaskPath is the multi-label output for a volume written into outDir.
func CombinedMaskPath(input, outDir string) string {
	return filepath.Join(outDir, volumeBase(input)+maskSuffix)
}

// SegmentVolume segments input into outDir with the given granularity and
// returns the mask files produced. Empty rois use the configured targets.
func (s *Segmenter) SegmentVolume(ctx context.Context, input, outDir string, rois []string, granularity string) ([]string, error) {
	passes, ok := Granularities(granularity)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, stageName, "segment", "unknown granularity "+granularity, nil)
	}
	targets := s.rois
	if len(rois) > 0 {
		targets = NormalizeROIs(rois)
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldFile, input))

	var masks []string
	for _, pass := range passes {
		switch pass {
		case config.GranularityCombined:
			mask, err := s.segmentCombined(ctx, logger, input, outDir, targets)
			if err != nil {
				return masks, err
			}
			masks = append(masks, mask)
		case config.GranularityPerTarget:
			perTarget, err := s.segmentPerTarget(ctx, logger, input, outDir, targets)
			masks = append(masks, perTarget...)
			if err != nil {
				return masks, err
			}
		}
	}
	return masks, nil
}

func (s *Segmenter) segmentCombined(ctx context.Context, logger *slog.Logger, input, outDir string, rois []string) (string, error) {
	mask := CombinedMaskPath(input, outDir)
	logger.Info("segmenting all targets at once", logging.String(logging.FieldROI, strings.Join(rois, ",")))
	if err := s.runner.Segment(ctx, totalseg.Request{Input: input, Output: mask, ROIs: rois, MultiLabel: true}); err != nil {
		return "", err
	}
	if err := expectFile(mask); err != nil {
		return "", err
	}
	logger.Info("combined mask written", logging.String("mask", mask))
	return mask, nil
}

func (s *Segmenter) segmentPerTarget(ctx context.Context, logger *slog.Logger, input, outDir string, rois []string) ([]string, error) {
	masks := make([]string, 0, len(rois))
	for _, roi := range rois {
		roiLogger := logger.With(logging.String(logging.FieldROI, roi))
		roiLogger.Info("segmenting target")
		if err := s.runner.Segment(ctx, totalseg.Request{Input: input, Output: outDir, ROIs: []string{roi}}); err != nil {
			return masks, err
		}
		mask := filepath.Join(outDir, roi+volumeSuffix)
		if err := expectFile(mask); err != nil {
			return masks, err
		}
		roiLogger.Info("target mask written", logging.String("mask", mask))
		masks = append(masks, mask)
	}
	return masks, nil
}

// SegmentAll segments root/<subject>/<series>/<series>.nii.gz (or .nii) for every
// subject and series in name order, writing masks beside each volume.
// The first error stops the run.
func (s *Segmenter) SegmentAll(ctx context.Context, root string) (Report, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, s.logger)
	report := Report{Root: root}

	if _, ok := Granularities(s.granularity); !ok {
		return report, services.Wrap(services.ErrConfiguration, stageName, "segment", "unknown granularity "+s.granularity, nil)
	}
	subjects, err := fileutil.SubDirs(root)
	if err != nil {
		marker := services.ErrFilesystem
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return report, services.Wrap(marker, stageName, "list subjects", root, err)
	}

	lock, err := runlock.Acquire(root)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	logger.Info("segmenting volumes",
		logging.String("root", root),
		logging.Int("subjects", len(subjects)),
		logging.String("granularity", s.granularity),
		logging.String(logging.FieldROI, strings.Join(s.rois, ",")),
	)

	s.progress.Start("Segmenting subjects", len(subjects))
	defer s.progress.Finish()

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.segmentSubject(services.WithSubject(ctx, subject), filepath.Join(root, subject), &report); err != nil {
			return report, err
		}
		s.progress.Advance()
	}

	logger.Info("segmentation complete", logging.Int("volumes", report.Volumes))
	return report, nil
}

func (s *Segmenter) segmentSubject(ctx context.Context, subjectDir string, report *Report) error {
	logger := logging.WithContext(ctx, s.logger)
	series, err := fileutil.SubDirs(subjectDir)
	if err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "list series", subjectDir, err)
	}
	for _, name := range series {
		seriesDir := filepath.Join(subjectDir, name)
		volume, ok := findVolume(seriesDir, name)
		if !ok {
			logger.Debug("series has no volume", logging.String(logging.FieldBucket, name))
			continue
		}
		logger.Info("segmenting volume", logging.String(logging.FieldBucket, name))
		masks, err := s.SegmentVolume(ctx, volume, seriesDir, nil, s.granularity)
		report.Masks = append(report.Masks, masks...)
		if err != nil {
			return err
		}
		report.Volumes++
		logger.Info("volume segmented", logging.String(logging.FieldBucket, name), logging.Int("masks", len(masks)))
	}
	return nil
}

func findVolume(seriesDir, name string) (string, bool) {
	for _, suffix := range volumeSuffixes {
		volume := filepath.Join(seriesDir, name+suffix)
		if info, err := os.Stat(volume); err == nil && info.Mode().IsRegular() {
			return volume, true
		}
	}
	return "", false
}

func expectFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "verify output", "TotalSegmentator produced no "+filepath.Base(path), err)
	}
	return nil
}

func volumeBase(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, volumeSuffix) {
		return strings.TrimSuffix(base, volumeSuffix)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Report summarizes a SegmentAll run.
type Report struct {
	Root    string
	Volumes int
	Masks   []string
}
