package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"dcmorg/internal/converter"
	"dcmorg/internal/preflight"
	"dcmorg/internal/services"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert organized series to NIfTI with dcm2niix",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyPath(cmd, "input", &cfg.Paths.OutputDir)
			applyPath(cmd, "output", &cfg.Paths.NiftiDir)
			if cmd.Flags().Changed("min-files") {
				cfg.Convert.MinFiles, _ = cmd.Flags().GetInt("min-files")
			}
			if err := reconcile(cfg); err != nil {
				return err
			}
			s, err := ctx.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			_, err = runConvert(s, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	cmd.Flags().String("input", "", "Organized directory (default from config)")
	cmd.Flags().String("output", "", "NIfTI output directory (default <organized>_nii)")
	cmd.Flags().Int("min-files", converter.DefaultMinFiles, "Skip subjects with fewer entries (0 disables)")
	return cmd
}

func runConvert(s *session, out, progressOut io.Writer) (converter.Report, error) {
	if err := s.cfg.RequireOrganized(); err != nil {
		return converter.Report{}, err
	}
	if err := preflight.Err(
		preflight.RunAll(s.cfg, preflight.StageConvert),
		preflight.CheckSystemDeps(s.cfg, preflight.StageConvert),
	); err != nil {
		return converter.Report{}, err
	}
	reporter, release := s.progressReporter(progressOut)
	conv := converter.NewFromConfig(s.cfg, reporter, s.logger)
	report, err := conv.ConvertAll(s.ctx, s.cfg.OrganizedDir(), s.cfg.NiftiRoot())
	release()
	if len(report.Subjects) > 0 {
		fmt.Fprintln(out, renderConvertReport(report))
	}
	fmt.Fprintln(out, report.Summary())
	if err != nil {
		return report, err
	}
	if report.SubjectsFailed > 0 {
		return report, services.Wrap(services.ErrExternalTool, "converting", "convert all",
			fmt.Sprintf("%d subject(s) failed to convert", report.SubjectsFailed), nil)
	}
	return report, nil
}

func renderConvertReport(report converter.Report) string {
	rows := make([][]string, 0, len(report.Subjects))
	for _, s := range report.Subjects {
		status := "ok"
		switch {
		case s.Skipped:
			status = "skipped (too few entries)"
		case s.Err != nil:
			status = "failed at " + s.FailedSeries + ": " + s.Err.Error()
		}
		rows = append(rows, []string{s.Subject, strconv.Itoa(s.Series), strconv.Itoa(len(s.Volumes)), status})
	}
	return renderTable(
		[]string{"Subject", "Series", "Converted", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	)
}
