package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"speechline/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			results := preflight.RunAll(cfg)
			renderPreflight(out, results)
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func renderPreflight(out io.Writer, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if !result.Passed {
			status = "FAILED"
		}
		rows = append(rows, []string{result.Name, status, result.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
}
