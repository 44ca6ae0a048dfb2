package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the data directories used by the scoring pipeline.
type Paths struct {
	RawInputRoot     string `toml:"raw_input_root"`
	ScoredOutputRoot string `toml:"scored_output_root"`
	LogDir           string `toml:"log_dir"`
}

// Catalog describes where theme definitions are read from.
type Catalog struct {
	// Backend selects the catalog adapter: "dir" or "sqlite".
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	DBPath  string `toml:"db_path"`
	// Selected names the themes loaded as valid sources. Empty loads every theme.
	Selected        []string `toml:"selected"`
	LoadConcurrency int      `toml:"load_concurrency"`
}

// Scoring contains the fixed generation options applied to every pass of a run.
type Scoring struct {
	Model          string  `toml:"model"`
	Passes         int     `toml:"passes"`
	Temperature    float64 `toml:"temperature"`
	TopP           float64 `toml:"top_p"`
	RepeatPenalty  float64 `toml:"repeat_penalty"`
	PromptTemplate string  `toml:"prompt_template"`
}

// Backend contains connection settings for the text-generation backend.
type Backend struct {
	// Provider selects the client: "ollama" or "openrouter".
	Provider       string `toml:"provider"`
	Host           string `toml:"host"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Ontology contains settings for single-shot theme ontology generation.
type Ontology struct {
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	PromptTemplate string  `toml:"prompt_template"`
	// Connection overrides; empty values fall back to [backend].
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for themescore.
//
// Configuration sections by subsystem:
//   - Paths: Stage 1 input root, scored output root, log directory
//   - Catalog: theme catalog adapter and selected source themes
//   - Scoring: model and sampling options fixed for a run
//   - Backend: Ollama or OpenRouter connection settings
//   - Ontology: single-shot ontology generation settings
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Catalog  Catalog  `toml:"catalog"`
	Scoring  Scoring  `toml:"scoring"`
	Backend  Backend  `toml:"backend"`
	Ontology Ontology `toml:"ontology"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("themescore.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a scoring run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScoredOutputRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the connection settings for an OpenRouter-compatible endpoint.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
}

// ScoringLLM returns the connection settings used by scoring passes.
func (c *Config) ScoringLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.Backend.APIKey),
		BaseURL:        strings.TrimSpace(c.Backend.BaseURL),
		Model:          strings.TrimSpace(c.Scoring.Model),
		Referer:        strings.TrimSpace(c.Backend.Referer),
		Title:          strings.TrimSpace(c.Backend.Title),
		TimeoutSeconds: c.Backend.TimeoutSeconds,
		RetryAttempts:  c.Backend.RetryAttempts,
	}
}

// OntologyLLM returns the LLM settings for ontology generation.
// Falls back to [backend] settings when not explicitly configured.
func (c *Config) OntologyLLM() LLMConfig {
	cfg := LLMConfig{
		APIKey:         strings.TrimSpace(c.Ontology.APIKey),
		BaseURL:        strings.TrimSpace(c.Ontology.BaseURL),
		Model:          strings.TrimSpace(c.Ontology.Model),
		Referer:        strings.TrimSpace(c.Backend.Referer),
		Title:          defaultOntologyTitle,
		TimeoutSeconds: c.Backend.TimeoutSeconds,
		RetryAttempts:  c.Backend.RetryAttempts,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(c.Backend.APIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimSpace(c.Backend.BaseURL)
	}
	return cfg
}
