package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dcmorg/internal/deps"
	"dcmorg/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Show external tool availability and directory access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cfg)
			fmt.Fprintln(out, renderDepsTable(statuses))

			printSectionHeader(out, "Directories")
			for _, r := range preflight.RunAll(cfg) {
				kind := statusOK
				if !r.Passed {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if missing := deps.Missing(statuses); strict && len(missing) > 0 {
				return fmt.Errorf("%d required tool(s) missing", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when a required tool is missing")
	return cmd
}

func renderDepsTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		location := s.Path
		if !s.Available {
			location = s.Detail
		}
		rows = append(rows, []string{s.Name, s.Stage, yesNo(s.Available), location, s.Description})
	}
	return renderTable([]string{"Tool", "Stage", "Available", "Location", "Purpose"}, rows, nil)
}
