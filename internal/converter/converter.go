package converter

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"dcmorg/internal/config"
	"dcmorg/internal/fileutil"
	"dcmorg/internal/logging"
	"dcmorg/internal/progress"
	"dcmorg/internal/runlock"
	"dcmorg/internal/services"
	"dcmorg/internal/services/dcm2niix"
)

const stageName = "converting"

// DefaultMinFiles is the entry count below which a subject is skipped.
const DefaultMinFiles = 5

// VolumeConverter converts one series directory into a volume inside outDir.
type VolumeConverter interface {
	Convert(ctx context.Context, seriesDir, outDir string) (string, error)
}

// Options configures a Converter.
type Options struct {
	Service VolumeConverter
	// MinFiles defaults to DefaultMinFiles; negative disables the check.
	MinFiles int
	Progress progress.Reporter
	Logger   *slog.Logger
}

// Converter runs batch conversion.
type Converter struct {
	svc      VolumeConverter
	minFiles int
	progress progress.Reporter
	logger   *slog.Logger
}

// New constructs a Converter.
func New(opts Options) *Converter {
	if opts.Service == nil {
		opts.Service = dcm2niix.NewService(dcm2niix.Config{Compress: true})
	}
	if opts.MinFiles == 0 {
		opts.MinFiles = DefaultMinFiles
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	return &Converter{
		svc:      opts.Service,
		minFiles: opts.MinFiles,
		progress: opts.Progress,
		logger:   logging.NewComponentLogger(opts.Logger, "converter"),
	}
}

// NewFromConfig wires a dcm2niix service from the convert section.
func NewFromConfig(cfg *config.Config, reporter progress.Reporter, logger *slog.Logger) *Converter {
	minFiles := cfg.Convert.MinFiles
	if minFiles == 0 {
		// Zero in the file means "convert everything".
		minFiles = -1
	}
	return New(Options{
		Service: dcm2niix.NewService(dcm2niix.Config{
			Binary:   cfg.Dcm2niixBinary(),
			Compress: cfg.Convert.Compress,
		}),
		MinFiles: minFiles,
		Progress: reporter,
		Logger:   logger,
	})
}

// DefaultOutputDir is the sibling "nii" directory of seriesDir, used when a
// single series is converted without an explicit destination.
func DefaultOutputDir(seriesDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(seriesDir)), "nii")
}

// ConvertSeries converts one series directory. An empty outDir resolves to
// DefaultOutputDir(seriesDir).
func (c *Converter) ConvertSeries(ctx context.Context, seriesDir, outDir string) (string, error) {
	if outDir == "" {
		outDir = DefaultOutputDir(seriesDir)
	}
	return c.svc.Convert(ctx, seriesDir, outDir)
}

// ConvertAll converts every subject under dcmRoot into niiRoot. Subject
// failures are recorded in the report; the returned error covers setup
// failures and cancellation.
func (c *Converter) ConvertAll(ctx context.Context, dcmRoot, niiRoot string) (Report, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, c.logger)
	report := Report{InputDir: dcmRoot, OutputDir: niiRoot}

	subjects, err := fileutil.SubDirs(dcmRoot)
	if err != nil {
		marker := services.ErrFilesystem
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return report, services.Wrap(marker, stageName, "list subjects", dcmRoot, err)
	}

	lock, err := runlock.Acquire(niiRoot)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	logger.Info("converting subjects",
		logging.String("input", dcmRoot),
		logging.String("output", niiRoot),
		logging.Int("subjects", len(subjects)),
		logging.Int("min_files", c.minFiles),
	)

	c.progress.Start("Converting subjects", len(subjects))
	defer c.progress.Finish()

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := c.convertSubject(ctx, filepath.Join(dcmRoot, subject), filepath.Join(niiRoot, subject))
		report.record(result)
		c.progress.Advance()
		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			return report, result.Err
		}
	}

	logger.Info("conversion complete",
		logging.Int("processed", report.Converted),
		logging.Int("total", report.Series),
		logging.Int("subjects_skipped", report.SubjectsSkipped),
		logging.Int("subjects_failed", report.SubjectsFailed),
		logging.String("summary", report.Summary()),
	)
	return report, nil
}

func (c *Converter) convertSubject(ctx context.Context, subjectDir, outDir string) SubjectResult {
	subject := filepath.Base(subjectDir)
	ctx = services.WithSubject(ctx, subject)
	logger := logging.WithContext(ctx, c.logger)
	result := SubjectResult{Subject: subject}

	entries, err := os.ReadDir(subjectDir)
	if err != nil {
		result.Err = services.Wrap(services.ErrFilesystem, stageName, "read subject", subjectDir, err)
		c.logFailure(logger, result)
		return result
	}
	if c.minFiles > 0 && len(entries) < c.minFiles {
		result.Skipped = true
		logger.Info("subject skipped",
			logging.Int("entries", len(entries)),
			logging.Int("min_files", c.minFiles),
			logging.String("reason", "too few entries"),
		)
		return result
	}

	units := seriesUnits(subjectDir, entries)
	result.Series = len(units)
	for _, unit := range units {
		name := filepath.Base(unit)
		volume, err := c.svc.Convert(ctx, unit, filepath.Join(outDir, name))
		if err != nil {
			result.FailedSeries = name
			result.Err = err
			c.logFailure(logger, result)
			return result
		}
		result.Volumes = append(result.Volumes, volume)
		logger.Debug("series converted",
			logging.String(logging.FieldBucket, name),
			logging.String(logging.FieldFile, volume),
		)
	}
	logger.Info("subject converted", logging.Int("series", len(result.Volumes)))
	return result
}

// seriesUnits returns the directories to convert for a subject: each
// subdirectory, or the subject itself when it holds only loose files.
func seriesUnits(subjectDir string, entries []os.DirEntry) []string {
	var units []string
	hasFiles := false
	for _, entry := range entries {
		path := filepath.Join(subjectDir, entry.Name())
		if entry.IsDir() {
			units = append(units, path)
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				units = append(units, path)
				continue
			}
		}
		hasFiles = true
	}
	if len(units) == 0 && hasFiles {
		units = append(units, subjectDir)
	}
	return units
}

func (c *Converter) logFailure(logger *slog.Logger, result SubjectResult) {
	if errors.Is(result.Err, context.Canceled) {
		return
	}
	logging.ErrorWithContext(logger, "subject conversion failed", "convert_subject_failed",
		logging.String(logging.FieldBucket, result.FailedSeries),
		logging.String(logging.FieldErrorKind, services.Kind(result.Err)),
		logging.String(logging.FieldErrorHint, "check dcm2niix is installed and the series holds one readable DICOM series"),
		logging.Error(result.Err),
	)
}
