// Package themes resolves theme identifiers against a theme catalog.
//
// A Catalog is the external store of theme definitions. Two adapters are
// provided: DirCatalog reads one JSON or YAML file per theme, and
// SQLiteCatalog reads a catalog database that can be populated from a
// directory with Import.
//
// Registry sits in front of a Catalog for the lifetime of one scoring run. It
// loads the selected source themes once, resolves proposal sources against
// that set, and resolves targets by name then id. Resolved targets are cached
// for the run, so a found target key reaches the catalog at most once.
package themes
