package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeScoring()
	c.normalizeBackend()
	c.normalizeOntology()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RawInputRoot, err = expandPath(c.Paths.RawInputRoot); err != nil {
		return fmt.Errorf("paths.raw_input_root: %w", err)
	}
	if c.Paths.ScoredOutputRoot, err = expandPath(c.Paths.ScoredOutputRoot); err != nil {
		return fmt.Errorf("paths.scored_output_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Backend = strings.ToLower(strings.TrimSpace(c.Catalog.Backend))
	if c.Catalog.Backend == "" {
		c.Catalog.Backend = defaultCatalogBackend
	}
	var err error
	if c.Catalog.Dir, err = expandPath(strings.TrimSpace(c.Catalog.Dir)); err != nil {
		return fmt.Errorf("catalog.dir: %w", err)
	}
	if c.Catalog.DBPath, err = expandPath(strings.TrimSpace(c.Catalog.DBPath)); err != nil {
		return fmt.Errorf("catalog.db_path: %w", err)
	}
	selected := c.Catalog.Selected[:0]
	for _, name := range c.Catalog.Selected {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			selected = append(selected, trimmed)
		}
	}
	c.Catalog.Selected = selected
	if c.Catalog.LoadConcurrency <= 0 {
		c.Catalog.LoadConcurrency = defaultCatalogConcurrency
	}
	return nil
}

func (c *Config) normalizeScoring() {
	c.Scoring.Model = strings.TrimSpace(c.Scoring.Model)
	if c.Scoring.Model == "" {
		c.Scoring.Model = defaultScoringModel
	}
	c.Scoring.PromptTemplate = strings.TrimSpace(c.Scoring.PromptTemplate)
	if c.Scoring.PromptTemplate != "" {
		if expanded, err := expandPath(c.Scoring.PromptTemplate); err == nil {
			c.Scoring.PromptTemplate = expanded
		}
	}
}

func (c *Config) normalizeBackend() {
	c.Backend.Provider = strings.ToLower(strings.TrimSpace(c.Backend.Provider))
	if c.Backend.Provider == "" {
		c.Backend.Provider = defaultBackendProvider
	}
	c.Backend.Host = strings.TrimSpace(c.Backend.Host)
	if c.Backend.Host == "" {
		if value, ok := os.LookupEnv("OLLAMA_HOST"); ok && strings.TrimSpace(value) != "" {
			c.Backend.Host = strings.TrimSpace(value)
		} else {
			c.Backend.Host = defaultOllamaHost
		}
	}
	if !strings.Contains(c.Backend.Host, "://") {
		c.Backend.Host = "http://" + c.Backend.Host
	}
	c.Backend.Host = strings.TrimRight(c.Backend.Host, "/")
	c.Backend.APIKey = strings.TrimSpace(c.Backend.APIKey)
	if c.Backend.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Backend.APIKey = strings.TrimSpace(value)
		}
	}
	c.Backend.BaseURL = strings.TrimSpace(c.Backend.BaseURL)
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultOpenRouterBaseURL
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = defaultBackendTimeout
	}
	if c.Backend.RetryAttempts <= 0 {
		c.Backend.RetryAttempts = defaultBackendRetries
	}
}

func (c *Config) normalizeOntology() {
	c.Ontology.Model = strings.TrimSpace(c.Ontology.Model)
	if c.Ontology.Model == "" {
		c.Ontology.Model = defaultOntologyModel
	}
	if c.Ontology.MaxTokens <= 0 {
		c.Ontology.MaxTokens = defaultOntologyMaxTokens
	}
	c.Ontology.PromptTemplate = strings.TrimSpace(c.Ontology.PromptTemplate)
	if c.Ontology.PromptTemplate != "" {
		if expanded, err := expandPath(c.Ontology.PromptTemplate); err == nil {
			c.Ontology.PromptTemplate = expanded
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
