package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"themescore/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify paths, catalog and backend are ready for a scoring run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			targets := preflight.Targets{}
			catalog, closeCatalog, catalogErr := openCatalog(cmd.Context(), cfg, logger)
			if catalogErr == nil {
				defer closeCatalog()
				targets.Catalog = catalog
			}
			if backend, err := newBackend(cfg, ""); err == nil {
				targets.Backend = backend
			}

			results := preflight.RunAll(cmd.Context(), cfg, targets)
			if catalogErr != nil {
				for i := range results {
					if results[i].Name == "Theme catalog" {
						results[i].Detail = catalogErr.Error()
					}
				}
			}

			out := cmd.OutOrStdout()
			pass := color.New(color.FgGreen)
			fail := color.New(color.FgRed)
			if !shouldColorize(out) {
				pass.DisableColor()
				fail.DisableColor()
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := pass.Sprint("ok")
				if !r.Passed {
					status = fail.Sprint("FAIL")
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
