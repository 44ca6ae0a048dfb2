package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"themescore/internal/config"
	"themescore/internal/logging"
	"themescore/internal/services"
	"themescore/internal/services/llm"
	"themescore/internal/services/ollama"
	"themescore/internal/themes"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// generationBackend is what the score and check commands need from a provider.
type generationBackend interface {
	Generate(ctx context.Context, model, prompt string, opts services.GenerateOptions) (string, error)
	HealthCheck(ctx context.Context) error
}

func newBackend(cfg *config.Config, model string) (generationBackend, error) {
	if strings.TrimSpace(model) == "" {
		model = cfg.Scoring.Model
	}
	switch cfg.Backend.Provider {
	case config.ProviderOllama:
		return ollama.NewClient(ollama.Config{
			Host:           cfg.Backend.Host,
			Model:          model,
			TimeoutSeconds: cfg.Backend.TimeoutSeconds,
			RetryAttempts:  cfg.Backend.RetryAttempts,
		}), nil
	case config.ProviderOpenRouter:
		settings := cfg.ScoringLLM()
		return llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
			RetryAttempts:  settings.RetryAttempts,
		}), nil
	default:
		return nil, fmt.Errorf("backend.provider: unsupported value %q", cfg.Backend.Provider)
	}
}

// openCatalog returns the configured catalog and a close func.
func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (themes.Catalog, func() error, error) {
	switch cfg.Catalog.Backend {
	case config.CatalogBackendSQLite:
		catalog, err := themes.OpenSQLiteCatalog(ctx, cfg.Catalog.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return catalog, catalog.Close, nil
	default:
		catalog := themes.NewDirCatalog(cfg.Catalog.Dir,
			themes.WithConcurrency(cfg.Catalog.LoadConcurrency),
			themes.WithLogger(logger),
		)
		return catalog, func() error { return nil }, nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
