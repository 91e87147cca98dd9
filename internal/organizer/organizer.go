package organizer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dcmorg/internal/config"
	"dcmorg/internal/dicommeta"
	"dcmorg/internal/fileutil"
	"dcmorg/internal/logging"
	"dcmorg/internal/progress"
	"dcmorg/internal/runlock"
	"dcmorg/internal/services"
	"dcmorg/internal/textutil"
)

const stageName = "organizing"

// Options configures an Organizer.
type Options struct {
	InputDir string
	// OutputDir defaults to "<InputDir>_output".
	OutputDir string
	// Extension selects slice files; matched case-insensitively. Defaults to ".dcm".
	Extension string
	Reader    dicommeta.Reader
	Progress  progress.Reporter
	Logger    *slog.Logger
}

// Organizer walks subjects and copies slices into bucket folders.
type Organizer struct {
	opts   Options
	logger *slog.Logger
}

// New constructs an Organizer, filling unset options with defaults.
func New(opts Options) *Organizer {
	opts.InputDir = filepath.Clean(opts.InputDir)
	if strings.TrimSpace(opts.OutputDir) == "" {
		opts.OutputDir = opts.InputDir + "_output"
	}
	opts.OutputDir = filepath.Clean(opts.OutputDir)
	ext := strings.TrimSpace(opts.Extension)
	if ext == "" {
		ext = ".dcm"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	opts.Extension = ext
	if opts.Reader == nil {
		opts.Reader = dicommeta.NewReader("")
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	return &Organizer{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "organizer")}
}

// NewFromConfig builds an Organizer for the configured input and output trees.
func NewFromConfig(cfg *config.Config, reporter progress.Reporter, logger *slog.Logger) *Organizer {
	return New(Options{
		InputDir:  cfg.Paths.InputDir,
		OutputDir: cfg.OrganizedDir(),
		Extension: cfg.Organize.Extension,
		Reader:    dicommeta.NewReader(cfg.Organize.UnknownLabel),
		Progress:  reporter,
		Logger:    logger,
	})
}

// OutputDir returns the resolved output root.
func (o *Organizer) OutputDir() string {
	return o.opts.OutputDir
}

// OrganizeAll processes every subject under the input root in name order.
// Per-file problems are recorded in the report; the returned error covers
// setup failures and cancellation only.
func (o *Organizer) OrganizeAll(ctx context.Context) (Report, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, o.logger)
	report := Report{InputDir: o.opts.InputDir, OutputDir: o.opts.OutputDir}

	info, err := os.Stat(o.opts.InputDir)
	if err != nil {
		marker := services.ErrFilesystem
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return report, services.Wrap(marker, stageName, "open input", o.opts.InputDir, err)
	}
	if !info.IsDir() {
		return report, services.Wrap(services.ErrValidation, stageName, "open input", o.opts.InputDir+" is not a directory", nil)
	}

	lock, err := runlock.Acquire(o.opts.OutputDir)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	subjects, err := o.subjects()
	if err != nil {
		return report, err
	}

	logger.Info("organizing subjects",
		logging.String("input", o.opts.InputDir),
		logging.String("output", o.opts.OutputDir),
		logging.Int("subjects", len(subjects)),
	)

	o.opts.Progress.Start("Organizing subjects", len(subjects))
	defer o.opts.Progress.Finish()

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			logger.Warn("organizing interrupted", logging.String("next_subject", subject), logging.Error(err))
			return report, err
		}
		o.organizeSubject(ctx, subject, &report)
		o.opts.Progress.Advance()
	}

	logger.Info("organizing complete",
		logging.Int("processed", report.Processed()),
		logging.Int("total", report.Total),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
		logging.String("summary", report.Summary()),
	)
	return report, nil
}

// subjects lists subject directories, leaving out the output root when it
// sits inside the input root.
func (o *Organizer) subjects() ([]string, error) {
	names, err := fileutil.SubDirs(o.opts.InputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, stageName, "list subjects", o.opts.InputDir, err)
	}
	subjects := names[:0]
	for _, name := range names {
		if filepath.Join(o.opts.InputDir, name) == o.opts.OutputDir {
			continue
		}
		subjects = append(subjects, name)
	}
	return subjects, nil
}

func (o *Organizer) organizeSubject(ctx context.Context, subject string, report *Report) {
	ctx = services.WithSubject(ctx, subject)
	logger := logging.WithContext(ctx, o.logger)
	index := report.startSubject(subject)
	outDir := filepath.Join(o.opts.OutputDir, subject)

	// WalkDir does not descend into a symlinked root.
	subjectDir, err := filepath.EvalSymlinks(filepath.Join(o.opts.InputDir, subject))
	if err != nil {
		o.recordFailure(logger, report, index, FileResult{
			Subject: subject,
			Source:  filepath.Join(o.opts.InputDir, subject),
			Err:     services.Wrap(services.ErrFilesystem, stageName, "resolve subject", subject, err),
		})
		return
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		o.recordFailure(logger, report, index, FileResult{
			Subject: subject,
			Source:  subjectDir,
			Err:     services.Wrap(services.ErrFilesystem, stageName, "create subject directory", outDir, err),
		})
		return
	}

	claimed := make(map[string]string)
	walkErr := filepath.WalkDir(subjectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			o.recordFailure(logger, report, index, FileResult{
				Subject: subject,
				Source:  path,
				Err:     services.Wrap(services.ErrFilesystem, stageName, "walk", path, err),
			})
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), o.opts.Extension) {
			return nil
		}
		result := o.processFile(subject, outDir, path, claimed)
		switch result.Outcome {
		case OutcomeFailed:
			o.recordFailure(logger, report, index, result)
		case OutcomeSkipped:
			logger.Debug("slice skipped",
				logging.String(logging.FieldFile, path),
				logging.String("reason", result.Reason),
			)
			report.record(index, result)
		default:
			if result.Reason != "" {
				logger.Warn("slice renamed",
					logging.String(logging.FieldFile, path),
					logging.String("destination", result.Destination),
					logging.String("reason", result.Reason),
				)
			} else {
				logger.Debug("slice copied",
					logging.String(logging.FieldFile, path),
					logging.String(logging.FieldBucket, result.Bucket),
				)
			}
			report.record(index, result)
		}
		return nil
	})
	if walkErr != nil {
		o.recordFailure(logger, report, index, FileResult{
			Subject: subject,
			Source:  subjectDir,
			Err:     services.Wrap(services.ErrFilesystem, stageName, "walk", subjectDir, walkErr),
		})
	}

	s := report.Subjects[index]
	logger.Info("subject organized",
		logging.Int("copied", s.Copied),
		logging.Int("skipped", s.Skipped),
		logging.Int("failed", s.Failed),
		logging.Int("buckets", len(s.Buckets)),
	)
}

// processFile copies one slice into its bucket. claimed maps destinations
// written during this subject to their source so two slices with the same
// sanitized name never overwrite each other.
func (o *Organizer) processFile(subject, outDir, path string, claimed map[string]string) FileResult {
	result := FileResult{Subject: subject, Source: path}

	info, err := o.opts.Reader.Read(path)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	bucket, ok, err := BucketName(info.Label, info.Thickness, info.HasThickness)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if !ok {
		result.Outcome = OutcomeSkipped
		if info.HasThickness {
			result.Reason = "slice thickness is zero"
		} else {
			result.Reason = "slice thickness missing"
		}
		return result
	}
	result.Bucket = bucket

	bucketDir := filepath.Join(outDir, bucket)
	if err := os.MkdirAll(bucketDir, 0o755); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = services.Wrap(services.ErrFilesystem, stageName, "create bucket", bucketDir, err)
		return result
	}
	dest := filepath.Join(bucketDir, textutil.SanitizeName(filepath.Base(path)))
	if owner, taken := claimed[dest]; taken {
		dest = freeName(dest, claimed)
		result.Reason = "name already used by " + owner
	}
	if err := fileutil.CopyFile(path, dest); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = services.Wrap(services.ErrFilesystem, stageName, "copy", path, err)
		return result
	}
	claimed[dest] = path
	result.Outcome = OutcomeCopied
	result.Destination = dest
	return result
}

// freeName appends _2, _3, ... before the extension until the name is unclaimed.
func freeName(dest string, claimed map[string]string) string {
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for n := 2; ; n++ {
		candidate := stem + "_" + strconv.Itoa(n) + ext
		if _, taken := claimed[candidate]; !taken {
			return candidate
		}
	}
}

func (o *Organizer) recordFailure(logger *slog.Logger, report *Report, index int, result FileResult) {
	result.Outcome = OutcomeFailed
	report.record(index, result)
	logging.ErrorWithContext(logger, "slice failed", "organize_file_failed",
		logging.String(logging.FieldFile, result.Source),
		logging.String(logging.FieldErrorKind, services.Kind(result.Err)),
		logging.String(logging.FieldErrorHint, "check the file is a readable DICOM slice"),
		logging.Error(result.Err),
	)
}
