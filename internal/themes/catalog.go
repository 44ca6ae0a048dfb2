package themes

import "context"

// Catalog is the external store of theme definitions.
type Catalog interface {
	// Load returns the named themes, or every theme when names is empty. A
	// missing name is an error.
	Load(ctx context.Context, names []string) ([]Theme, error)
	// Lookup resolves a single id or name, returning ErrThemeNotFound when
	// nothing matches.
	Lookup(ctx context.Context, idOrName string) (Theme, error)
	// List returns every theme ordered by id.
	List(ctx context.Context) ([]Theme, error)
}
