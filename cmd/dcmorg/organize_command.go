package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dcmorg/internal/organizer"
	"dcmorg/internal/preflight"
)

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Copy DICOM slices into per-series folders",
		Long: `Walks every subject folder under the input directory and copies each
slice into <output>/<subject>/<SeriesDescription>_<N>mm/. Slices without a
slice thickness are skipped; unreadable slices are reported and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyPath(cmd, "input", &cfg.Paths.InputDir)
			applyPath(cmd, "output", &cfg.Paths.OutputDir)
			if err := reconcile(cfg); err != nil {
				return err
			}
			s, err := ctx.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			_, err = runOrganize(s, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	cmd.Flags().String("input", "", "Input directory with one folder per subject")
	cmd.Flags().String("output", "", "Organized output directory (default <input>_output)")
	return cmd
}

func runOrganize(s *session, out, progressOut io.Writer) (organizer.Report, error) {
	if err := s.cfg.RequireInput(); err != nil {
		return organizer.Report{}, err
	}
	if err := preflight.Err(preflight.RunAll(s.cfg, preflight.StageOrganize), nil); err != nil {
		return organizer.Report{}, err
	}
	reporter, release := s.progressReporter(progressOut)
	org := organizer.NewFromConfig(s.cfg, reporter, s.logger)
	report, err := org.OrganizeAll(s.ctx)
	release()
	if len(report.Subjects) > 0 {
		fmt.Fprintln(out, renderOrganizeReport(report))
	}
	fmt.Fprintf(out, "Organize: %s -> %s\n", report.InputDir, report.OutputDir)
	fmt.Fprintln(out, report.Summary())
	return report, err
}

func renderOrganizeReport(report organizer.Report) string {
	rows := make([][]string, 0, len(report.Subjects)+1)
	for _, s := range report.Subjects {
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.Copied),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
			strings.Join(s.BucketNames(), ", "),
		})
	}
	rows = append(rows, []string{
		"Total",
		strconv.Itoa(report.Copied),
		strconv.Itoa(report.Skipped),
		strconv.Itoa(report.Failed),
		"",
	})
	table := renderTable(
		[]string{"Subject", "Copied", "Skipped", "Failed", "Series"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
	if len(report.Failures) == 0 {
		return table
	}
	failures := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, []string{f.Subject, f.Source, errorText(f.Err)})
	}
	return table + "\n" + renderTitledTable("Failures", []string{"Subject", "File", "Error"}, failures, nil)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
