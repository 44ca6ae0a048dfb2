package themes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeThemeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirCatalogLoadsJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeThemeFile(t, dir, "obedience.json", `{"id":"obedience","name":"Obedience","tags":["core"]}`)
	writeThemeFile(t, dir, "mind_control.yaml", "id: mind_control\nname: Mind Control\ndescription: test\n")
	writeThemeFile(t, dir, "trance.yml", "name: Trance\n")
	writeThemeFile(t, dir, "README.md", "ignored")
	writeThemeFile(t, dir, ".hidden.json", "not json")

	catalog := NewDirCatalog(dir, WithConcurrency(2))
	themes, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(themes) != 3 {
		t.Fatalf("expected 3 themes, got %d", len(themes))
	}
	if themes[0].ID != "mind_control" || themes[1].ID != "obedience" || themes[2].ID != "trance" {
		t.Fatalf("expected themes sorted by id, got %+v", themes)
	}
	if themes[2].Name != "Trance" {
		t.Fatalf("expected yml theme name, got %q", themes[2].Name)
	}
	if themes[0].Data["description"] != "test" {
		t.Fatalf("expected opaque data to be retained, got %v", themes[0].Data)
	}
}

func TestDirCatalogLookupMatchesNameIDAndSlug(t *testing.T) {
	dir := t.TempDir()
	writeThemeFile(t, dir, "mind_control.json", `{"id":"mind_control","name":"Mind Control"}`)
	catalog := NewDirCatalog(dir)

	for _, query := range []string{"mind_control", "Mind Control", "MIND-CONTROL", " mind control "} {
		theme, err := catalog.Lookup(context.Background(), query)
		if err != nil {
			t.Fatalf("Lookup(%q) returned error: %v", query, err)
		}
		if theme.ID != "mind_control" {
			t.Fatalf("Lookup(%q) returned %+v", query, theme)
		}
	}

	_, err := catalog.Lookup(context.Background(), "absent")
	if !errors.Is(err, ErrThemeNotFound) {
		t.Fatalf("expected ErrThemeNotFound, got %v", err)
	}
}

func TestDirCatalogLoadMissingSelectedTheme(t *testing.T) {
	dir := t.TempDir()
	writeThemeFile(t, dir, "a.json", `{"id":"a","name":"A"}`)
	catalog := NewDirCatalog(dir)

	_, err := catalog.Load(context.Background(), []string{"a", "b"})
	var catalogErr *CatalogError
	if !errors.As(err, &catalogErr) {
		t.Fatalf("expected CatalogError, got %v", err)
	}
}

func TestDirCatalogUnreadable(t *testing.T) {
	catalog := NewDirCatalog(filepath.Join(t.TempDir(), "missing"))
	_, err := catalog.Load(context.Background(), nil)
	var catalogErr *CatalogError
	if !errors.As(err, &catalogErr) {
		t.Fatalf("expected CatalogError for missing directory, got %v", err)
	}
}

func TestDirCatalogMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeThemeFile(t, dir, "good.json", `{"id":"good"}`)
	writeThemeFile(t, dir, "bad.json", `{"id":`)
	catalog := NewDirCatalog(dir)

	_, err := catalog.Load(context.Background(), nil)
	var catalogErr *CatalogError
	if !errors.As(err, &catalogErr) {
		t.Fatalf("expected CatalogError for malformed file, got %v", err)
	}
}
