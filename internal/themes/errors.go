package themes

import (
	"errors"
	"fmt"
)

// ErrThemeNotFound is returned by Catalog.Lookup when no theme matches.
var ErrThemeNotFound = errors.New("theme not found")

// CatalogError reports an unreadable or incomplete catalog. It is fatal to a run.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("theme catalog %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// UnknownSourceError names the first source id absent from the loaded themes.
type UnknownSourceError struct {
	ID string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source theme id: %s", e.ID)
}

// TargetNotFoundError reports a target that resolved neither by name nor by id.
type TargetNotFoundError struct {
	ID   string
	Name string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target theme not found: name=%q id=%q", e.Name, e.ID)
}

func (e *TargetNotFoundError) Is(target error) bool {
	return target == ErrThemeNotFound
}
