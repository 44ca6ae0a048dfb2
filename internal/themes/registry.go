package themes

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"themescore/internal/logging"
)

// Registry resolves source and target themes for a single run. It is not safe
// for concurrent use; the scoring loop is sequential.
type Registry struct {
	catalog Catalog
	logger  *slog.Logger

	sources map[string]Theme
	folded  map[string]Theme
	targets map[string]Theme
}

// NewRegistry wraps catalog for one run.
func NewRegistry(catalog Catalog, logger *slog.Logger) *Registry {
	return &Registry{
		catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "themes"),
		sources: map[string]Theme{},
		folded:  map[string]Theme{},
		targets: map[string]Theme{},
	}
}

// Load reads the selected themes (all themes when selected is empty) and makes
// them available to ResolveSources. Any failure is a *CatalogError.
func (r *Registry) Load(ctx context.Context, selected []string) ([]Theme, error) {
	themes, err := r.catalog.Load(ctx, selected)
	if err != nil {
		var catalogErr *CatalogError
		if errors.As(err, &catalogErr) {
			return nil, err
		}
		return nil, &CatalogError{Op: "load", Err: err}
	}
	for _, theme := range themes {
		r.sources[theme.ID] = theme
		r.folded[Key(theme.ID)] = theme
	}
	r.logger.Info("themes loaded",
		logging.Int("themes", len(themes)),
		logging.Int("selected", len(selected)),
	)
	return themes, nil
}

// ResolveSources maps source ids to loaded themes, preserving order. Ids match
// exactly first, then case-insensitively.
func (r *Registry) ResolveSources(ids []string) ([]Theme, error) {
	out := make([]Theme, 0, len(ids))
	for _, id := range ids {
		theme, ok := r.sources[id]
		if !ok {
			theme, ok = r.folded[Key(id)]
		}
		if !ok {
			return nil, &UnknownSourceError{ID: id}
		}
		out = append(out, theme)
	}
	return out, nil
}

// ResolveTarget looks the target up by name, then by id, and caches successful
// resolutions under the folded id. Misses are not cached: a later proposal with
// the same id may carry a name that does resolve.
func (r *Registry) ResolveTarget(ctx context.Context, id, name string) (Theme, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}
	cacheKey := Key(id)

	if theme, ok := r.targets[cacheKey]; ok {
		return theme, nil
	}

	candidates := []string{name}
	if Key(id) != Key(name) {
		candidates = append(candidates, id)
	}
	for _, candidate := range candidates {
		theme, err := r.catalog.Lookup(ctx, candidate)
		if err == nil {
			r.targets[cacheKey] = theme
			return theme, nil
		}
		if !errors.Is(err, ErrThemeNotFound) {
			return Theme{}, err
		}
	}

	return Theme{}, &TargetNotFoundError{ID: id, Name: name}
}
