package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dcmorg/internal/preflight"
	"dcmorg/internal/segmenter"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Segment NIfTI volumes with TotalSegmentator",
		Long: `Runs TotalSegmentator on <nifti>/<subject>/<series>/<series>.nii.gz.
combined writes <series>_mask.nii.gz with every target in one volume;
per_target writes <roi>.nii.gz files one call at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyPath(cmd, "input", &cfg.Paths.NiftiDir)
			if cmd.Flags().Changed("rois") {
				cfg.Segment.ROIs, _ = cmd.Flags().GetStringSlice("rois")
			}
			if cmd.Flags().Changed("granularity") {
				cfg.Segment.Granularity, _ = cmd.Flags().GetString("granularity")
			}
			if err := reconcile(cfg); err != nil {
				return err
			}
			s, err := ctx.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			_, err = runSegment(s, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	cmd.Flags().String("input", "", "NIfTI directory (default from config)")
	cmd.Flags().StringSlice("rois", nil, "Targets to segment (comma separated)")
	cmd.Flags().String("granularity", "", "combined, per_target or both")
	return cmd
}

func runSegment(s *session, out, progressOut io.Writer) (segmenter.Report, error) {
	if err := s.cfg.RequireNifti(); err != nil {
		return segmenter.Report{}, err
	}
	if err := preflight.Err(
		preflight.RunAll(s.cfg, preflight.StageSegment),
		preflight.CheckSystemDeps(s.cfg, preflight.StageSegment),
	); err != nil {
		return segmenter.Report{}, err
	}
	reporter, release := s.progressReporter(progressOut)
	seg := segmenter.NewFromConfig(s.cfg, reporter, s.logger)
	report, err := seg.SegmentAll(s.ctx, s.cfg.NiftiRoot())
	release()
	fmt.Fprintf(out, "Segmented %d volume(s), %d mask(s) written\n", report.Volumes, len(report.Masks))
	return report, err
}
