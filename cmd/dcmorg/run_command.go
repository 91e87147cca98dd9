package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Organize, convert and segment in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyPath(cmd, "input", &cfg.Paths.InputDir)
			if err := reconcile(cfg); err != nil {
				return err
			}
			s, err := ctx.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSectionHeader(out, "organize")
			if _, err := runOrganize(s, out, cmd.ErrOrStderr()); err != nil {
				return err
			}
			printSectionHeader(out, "convert")
			if _, err := runConvert(s, out, cmd.ErrOrStderr()); err != nil {
				return err
			}
			printSectionHeader(out, "segment")
			_, err = runSegment(s, out, cmd.ErrOrStderr())
			return err
		},
	}
	cmd.Flags().String("input", "", "Input directory with one folder per subject")
	return cmd
}
