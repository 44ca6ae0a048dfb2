package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"themescore/internal/themes"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and import the theme catalog",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued themes",
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
			catalog, closeCatalog, err := openCatalog(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeCatalog()

			list, err := catalog.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, list)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, theme := range list {
				rows = append(rows, []string{theme.ID, theme.Name, fmt.Sprintf("%d", len(theme.Data))})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Fields"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			fmt.Fprintf(out, "%d themes (%s catalog)\n", len(list), cfg.Catalog.Backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	var fromDir string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import theme files from a directory into the SQLite catalog",
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
			source := strings.TrimSpace(fromDir)
			if source == "" {
				source = cfg.Catalog.Dir
			}
			target := strings.TrimSpace(dbPath)
			if target == "" {
				target = cfg.Catalog.DBPath
			}

			dirCatalog := themes.NewDirCatalog(source,
				themes.WithConcurrency(cfg.Catalog.LoadConcurrency),
				themes.WithLogger(logger),
			)
			list, err := dirCatalog.List(cmd.Context())
			if err != nil {
				return err
			}

			db, err := themes.OpenSQLiteCatalog(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer db.Close()

			count, err := db.Import(cmd.Context(), list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d themes from %s into %s\n", count, source, db.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&fromDir, "from", "", "Directory of theme files (default: catalog.dir)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite catalog path (default: catalog.db_path)")
	return cmd
}
