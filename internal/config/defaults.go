package config

const (
	defaultConfigPath          = "~/.config/themescore/config.toml"
	defaultRawInputRoot        = "data/catalog_v3/raw"
	defaultScoredOutputRoot    = "data/catalog_v3/scored"
	defaultLogDir              = "~/.local/share/themescore/logs"
	defaultCatalogBackend      = CatalogBackendDir
	defaultCatalogDir          = "data/catalog_v3/themes"
	defaultCatalogDBPath       = "data/catalog_v3/themes.db"
	defaultCatalogConcurrency  = 8
	defaultScoringModel        = "llama3.1:8b"
	defaultScoringPasses       = 3
	defaultScoringTemperature  = 0.2
	defaultScoringTopP         = 0.9
	defaultScoringRepeat       = 1.1
	defaultBackendProvider     = ProviderOllama
	defaultOllamaHost          = "http://localhost:11434"
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultBackendReferer      = "https://github.com/themescore/themescore"
	defaultBackendTitle        = "themescore"
	defaultBackendTimeout      = 120
	defaultBackendRetries      = 1
	defaultOntologyModel       = "openai/gpt-4o"
	defaultOntologyMaxTokens   = 2000
	defaultOntologyTemperature = 0.1
	defaultOntologyTitle       = "themescore ontology"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Catalog adapters.
const (
	CatalogBackendDir    = "dir"
	CatalogBackendSQLite = "sqlite"
)

// Generation backend providers.
const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RawInputRoot:     defaultRawInputRoot,
			ScoredOutputRoot: defaultScoredOutputRoot,
			LogDir:           defaultLogDir,
		},
		Catalog: Catalog{
			Backend:         defaultCatalogBackend,
			Dir:             defaultCatalogDir,
			DBPath:          defaultCatalogDBPath,
			LoadConcurrency: defaultCatalogConcurrency,
		},
		Scoring: Scoring{
			Model:         defaultScoringModel,
			Passes:        defaultScoringPasses,
			Temperature:   defaultScoringTemperature,
			TopP:          defaultScoringTopP,
			RepeatPenalty: defaultScoringRepeat,
		},
		Backend: Backend{
			Provider:       defaultBackendProvider,
			Host:           defaultOllamaHost,
			Referer:        defaultBackendReferer,
			Title:          defaultBackendTitle,
			TimeoutSeconds: defaultBackendTimeout,
			RetryAttempts:  defaultBackendRetries,
		},
		Ontology: Ontology{
			Model:       defaultOntologyModel,
			MaxTokens:   defaultOntologyMaxTokens,
			Temperature: defaultOntologyTemperature,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
