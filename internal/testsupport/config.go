package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"themescore/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Raw input, scored output, catalog and log directories are created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RawInputRoot = filepath.Join(base, "raw")
	cfgVal.Paths.ScoredOutputRoot = filepath.Join(base, "scored")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.Dir = filepath.Join(base, "themes")
	cfgVal.Catalog.DBPath = filepath.Join(base, "themes.db")
	cfgVal.Backend.TimeoutSeconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{
		cfgVal.Paths.RawInputRoot,
		cfgVal.Paths.ScoredOutputRoot,
		cfgVal.Paths.LogDir,
		cfgVal.Catalog.Dir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	return builder.cfg
}

// WithOllamaHost points the generation backend at a local Ollama-compatible server.
func WithOllamaHost(host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Provider = config.ProviderOllama
		b.cfg.Backend.Host = host
	}
}

// WithOpenRouter points the generation backend at an OpenRouter-compatible endpoint.
func WithOpenRouter(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Provider = config.ProviderOpenRouter
		b.cfg.Backend.BaseURL = baseURL
		b.cfg.Backend.APIKey = apiKey
	}
}

// WithPasses overrides the number of scoring passes.
func WithPasses(passes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.Passes = passes
	}
}

// WithSQLiteCatalog switches the catalog adapter to the SQLite store.
func WithSQLiteCatalog() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Backend = config.CatalogBackendSQLite
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RawInputRoot)
}

// WriteConfig encodes cfg as TOML next to its temp directories and returns the path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
