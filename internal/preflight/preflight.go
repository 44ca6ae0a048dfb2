package preflight

import (
	"context"

	"themescore/internal/config"
	"themescore/internal/themes"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Targets are the live collaborators RunAll probes. Nil entries are reported
// as failures.
type Targets struct {
	Catalog themes.Catalog
	Backend HealthChecker
}

// RunAll executes every applicable preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryReadable("Stage 1 input root", cfg.Paths.RawInputRoot))
	results = append(results, CheckDirectoryAccess("Scored output root", cfg.Paths.ScoredOutputRoot))
	results = append(results, CheckCatalog(ctx, "Theme catalog", targets.Catalog, cfg.Catalog.Selected))
	results = append(results, CheckBackend(ctx, "Scoring backend ("+cfg.Backend.Provider+")", targets.Backend))

	// Ontology generation is optional; only probe it when a key is available
	// and it does not share the scoring endpoint already checked above.
	if ontology := cfg.OntologyLLM(); ontology.APIKey != "" && ontologyUsesDistinctLLM(cfg) {
		results = append(results, CheckLLM(ctx, "Ontology LLM", ontology))
	}
	return results
}

func ontologyUsesDistinctLLM(cfg *config.Config) bool {
	if cfg.Backend.Provider != config.ProviderOpenRouter {
		return true
	}
	scoring := cfg.ScoringLLM()
	ontology := cfg.OntologyLLM()
	return scoring.APIKey != ontology.APIKey || scoring.BaseURL != ontology.BaseURL
}

// Failed counts failing results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
