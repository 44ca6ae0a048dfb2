package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"themescore/internal/fileutil"
	"themescore/internal/ontology"
	"themescore/internal/prompts"
	"themescore/internal/services"
	"themescore/internal/services/llm"
	"themescore/internal/textutil"
)

func newOntologyCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var maxTokens int
	var intoCatalog bool
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "ontology <theme name>",
		Short: "Draft a theme definition with the ontology model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			settings := cfg.OntologyLLM()
			if settings.APIKey == "" {
				return errors.New("ontology generation requires backend.api_key, ontology.api_key or OPENROUTER_API_KEY")
			}
			client := llm.NewClient(llm.Config{
				APIKey:         settings.APIKey,
				BaseURL:        settings.BaseURL,
				Model:          settings.Model,
				Referer:        settings.Referer,
				Title:          settings.Title,
				TimeoutSeconds: settings.TimeoutSeconds,
				RetryAttempts:  settings.RetryAttempts,
			})
			renderer, err := prompts.NewOntologyRenderer(cfg.Ontology.PromptTemplate)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("max-tokens") && maxTokens <= 0 {
				return fmt.Errorf("--max-tokens must be positive, got %d", maxTokens)
			}
			if maxTokens <= 0 {
				maxTokens = cfg.Ontology.MaxTokens
			}
			generator := ontology.NewGenerator(client, renderer, services.GenerateOptions{
				Temperature: cfg.Ontology.Temperature,
				MaxTokens:   maxTokens,
			}, logger)

			name := strings.Join(args, " ")
			target := strings.TrimSpace(outputPath)
			if intoCatalog {
				if target != "" {
					return errors.New("--output and --catalog are mutually exclusive")
				}
				slug := textutil.ThemeSlug(name)
				if slug == "" {
					return fmt.Errorf("theme name %q has no usable characters for a file name", name)
				}
				target = filepath.Join(cfg.Catalog.Dir, slug+".json")
				if !overwrite {
					if _, err := os.Stat(target); err == nil {
						return fmt.Errorf("theme file already exists at %s (use --overwrite to replace it)", target)
					}
				}
			}

			result, err := generator.Generate(cmd.Context(), name)
			if err != nil {
				return err
			}
			if target == "" {
				_, err := cmd.OutOrStdout().Write(result)
				return err
			}
			if err := fileutil.WriteFileAtomic(target, result, 0o644); err != nil {
				return fmt.Errorf("write ontology: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote ontology for %q to %s\n", strings.TrimSpace(name), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the ontology to this file instead of stdout")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Override ontology.max_tokens")
	cmd.Flags().BoolVar(&intoCatalog, "catalog", false, "Write the ontology into catalog.dir as <slug>.json")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing catalog file")
	return cmd
}
