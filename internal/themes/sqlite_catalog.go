package themes

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the catalog database was created by a different schema version.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteCatalog stores theme definitions in a SQLite database. Lookups match
// case-insensitively on id or name using keys folded in Go, since SQLite's
// lower() only folds ASCII.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// OpenSQLiteCatalog opens or creates the catalog database at path.
func OpenSQLiteCatalog(ctx context.Context, path string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &CatalogError{Op: "open", Err: err}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CatalogError{Op: "open", Err: err}
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, &CatalogError{Op: "open", Err: fmt.Errorf("apply pragma %q: %w", pragma, execErr)}
		}
	}

	catalog := &SQLiteCatalog{db: db, path: path}
	if err := catalog.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, &CatalogError{Op: "init schema", Err: err}
	}
	return catalog, nil
}

// Close closes the underlying database connection.
func (c *SQLiteCatalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file path.
func (c *SQLiteCatalog) Path() string { return c.path }

func (c *SQLiteCatalog) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := c.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := c.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (re-import the catalog)", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Import upserts themes into the catalog in a single transaction and returns
// the number of rows written.
func (c *SQLiteCatalog) Import(ctx context.Context, themes []Theme) (int, error) {
	var written int
	err := retryOnBusy(ctx, func() error {
		written = 0
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO themes (id, name, id_key, name_key, data)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	id_key = excluded.id_key,
	name_key = excluded.name_key,
	data = excluded.data`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, theme := range themes {
			payload, err := json.Marshal(theme)
			if err != nil {
				return fmt.Errorf("encode theme %s: %w", theme.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, theme.ID, theme.Name, Key(theme.ID), Key(theme.Name), string(payload)); err != nil {
				return fmt.Errorf("upsert theme %s: %w", theme.ID, err)
			}
			written++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, &CatalogError{Op: "import", Err: err}
	}
	return written, nil
}

// Load implements Catalog.
func (c *SQLiteCatalog) Load(ctx context.Context, names []string) ([]Theme, error) {
	if len(names) == 0 {
		return c.List(ctx)
	}
	out := make([]Theme, 0, len(names))
	for _, name := range names {
		theme, err := c.Lookup(ctx, name)
		if err != nil {
			return nil, &CatalogError{Op: "load", Err: fmt.Errorf("selected theme %q: %w", name, err)}
		}
		out = append(out, theme)
	}
	return out, nil
}

// Lookup implements Catalog. An exact id match wins over a name match.
func (c *SQLiteCatalog) Lookup(ctx context.Context, idOrName string) (Theme, error) {
	key := Key(idOrName)
	if key == "" {
		return Theme{}, fmt.Errorf("%q: %w", idOrName, ErrThemeNotFound)
	}
	var data string
	err := retryOnBusy(ctx, func() error {
		return c.db.QueryRowContext(ctx, `
SELECT data FROM themes
WHERE id_key = ? OR name_key = ?
ORDER BY CASE WHEN id_key = ? THEN 0 ELSE 1 END, id
LIMIT 1`, key, key, key).Scan(&data)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Theme{}, fmt.Errorf("%q: %w", idOrName, ErrThemeNotFound)
	}
	if err != nil {
		return Theme{}, &CatalogError{Op: "lookup", Err: err}
	}
	return decodeStoredTheme(data)
}

// List implements Catalog.
func (c *SQLiteCatalog) List(ctx context.Context) ([]Theme, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT data FROM themes ORDER BY id")
	if err != nil {
		return nil, &CatalogError{Op: "list", Err: err}
	}
	defer rows.Close()

	var themes []Theme
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, &CatalogError{Op: "list", Err: err}
		}
		theme, err := decodeStoredTheme(data)
		if err != nil {
			return nil, err
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, &CatalogError{Op: "list", Err: err}
	}
	return themes, nil
}

func decodeStoredTheme(data string) (Theme, error) {
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return Theme{}, &CatalogError{Op: "decode", Err: err}
	}
	theme, err := themeFromMap(raw, "")
	if err != nil {
		return Theme{}, &CatalogError{Op: "decode", Err: err}
	}
	return theme, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
