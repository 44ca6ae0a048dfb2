package themes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"themescore/internal/logging"
)

const defaultDirConcurrency = 8

// DirCatalog reads theme definitions from a directory holding one .json,
// .yaml, or .yml file per theme. The directory is read once, on first use.
type DirCatalog struct {
	dir         string
	concurrency int
	logger      *slog.Logger

	once    sync.Once
	themes  []Theme
	index   map[string]int
	loadErr error
}

// DirOption customizes a DirCatalog.
type DirOption func(*DirCatalog)

// WithConcurrency bounds how many theme files are decoded in parallel.
func WithConcurrency(n int) DirOption {
	return func(c *DirCatalog) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger attaches a logger for catalog diagnostics.
func WithLogger(logger *slog.Logger) DirOption {
	return func(c *DirCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewDirCatalog constructs a catalog rooted at dir.
func NewDirCatalog(dir string, opts ...DirOption) *DirCatalog {
	c := &DirCatalog{
		dir:         dir,
		concurrency: defaultDirConcurrency,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the catalog directory.
func (c *DirCatalog) Dir() string { return c.dir }

// Load implements Catalog.
func (c *DirCatalog) Load(ctx context.Context, names []string) ([]Theme, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return append([]Theme(nil), c.themes...), nil
	}
	out := make([]Theme, 0, len(names))
	for _, name := range names {
		theme, ok := c.find(name)
		if !ok {
			return nil, &CatalogError{Op: "load", Err: fmt.Errorf("selected theme %q: %w", name, ErrThemeNotFound)}
		}
		out = append(out, theme)
	}
	return out, nil
}

// Lookup implements Catalog.
func (c *DirCatalog) Lookup(ctx context.Context, idOrName string) (Theme, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return Theme{}, err
	}
	if theme, ok := c.find(idOrName); ok {
		return theme, nil
	}
	return Theme{}, fmt.Errorf("%q: %w", idOrName, ErrThemeNotFound)
}

// List implements Catalog.
func (c *DirCatalog) List(ctx context.Context) ([]Theme, error) {
	return c.Load(ctx, nil)
}

func (c *DirCatalog) find(idOrName string) (Theme, bool) {
	if strings.TrimSpace(idOrName) == "" {
		return Theme{}, false
	}
	for _, key := range []string{Key(idOrName), slugKey(idOrName)} {
		if idx, ok := c.index[key]; ok {
			return c.themes[idx], true
		}
	}
	return Theme{}, false
}

func (c *DirCatalog) ensureLoaded(ctx context.Context) error {
	c.once.Do(func() {
		c.loadErr = c.readAll(ctx)
	})
	return c.loadErr
}

func (c *DirCatalog) readAll(ctx context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return &CatalogError{Op: "read dir", Err: err}
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(c.dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	themes := make([]Theme, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for i, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			theme, err := decodeTheme(path, data)
			if err != nil {
				return err
			}
			themes[i] = theme
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return &CatalogError{Op: "read theme", Err: err}
	}

	sort.SliceStable(themes, func(i, j int) bool { return themes[i].ID < themes[j].ID })

	index := make(map[string]int, len(themes)*3)
	for i, theme := range themes {
		for _, key := range []string{Key(theme.ID), slugKey(theme.ID), Key(theme.Name), slugKey(theme.Name)} {
			if prev, dup := index[key]; dup && prev != i {
				c.logger.Warn("theme key collision; keeping first definition",
					logging.String("key", key),
					logging.String("kept", themes[prev].ID),
					logging.String("ignored", theme.ID),
				)
				continue
			}
			index[key] = i
		}
	}

	c.themes = themes
	c.index = index
	c.logger.Debug("theme catalog loaded",
		logging.String("dir", c.dir),
		logging.Int("themes", len(themes)),
	)
	return nil
}
