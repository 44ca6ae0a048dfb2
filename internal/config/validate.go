package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RawInputRoot) == "" {
		return errors.New("paths.raw_input_root must be set")
	}
	if strings.TrimSpace(c.Paths.ScoredOutputRoot) == "" {
		return errors.New("paths.scored_output_root must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Backend {
	case CatalogBackendDir:
		if c.Catalog.Dir == "" {
			return errors.New("catalog.dir must be set when catalog.backend is \"dir\"")
		}
	case CatalogBackendSQLite:
		if c.Catalog.DBPath == "" {
			return errors.New("catalog.db_path must be set when catalog.backend is \"sqlite\"")
		}
	default:
		return fmt.Errorf("catalog.backend: unsupported value %q (want %q or %q)", c.Catalog.Backend, CatalogBackendDir, CatalogBackendSQLite)
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.Passes <= 0 {
		return errors.New("scoring.passes must be positive")
	}
	if c.Scoring.Temperature < 0 {
		return errors.New("scoring.temperature must be >= 0")
	}
	if c.Scoring.TopP <= 0 || c.Scoring.TopP > 1 {
		return errors.New("scoring.top_p must be in (0, 1]")
	}
	if c.Scoring.RepeatPenalty <= 0 {
		return errors.New("scoring.repeat_penalty must be positive")
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Provider {
	case ProviderOllama:
		if c.Backend.Host == "" {
			return errors.New("backend.host must be set when backend.provider is \"ollama\"")
		}
	case ProviderOpenRouter:
		if c.Backend.APIKey == "" {
			return errors.New("backend.api_key must be set when backend.provider is \"openrouter\" (or set OPENROUTER_API_KEY)")
		}
	default:
		return fmt.Errorf("backend.provider: unsupported value %q (want %q or %q)", c.Backend.Provider, ProviderOllama, ProviderOpenRouter)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
