package proposals

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Selector resolves the directory holding the batch files for a run.
type Selector interface {
	Resolve() (string, error)
	Describe() string
}

// ExplicitSelector uses a caller-supplied directory.
type ExplicitSelector struct {
	Path string
}

// Resolve implements Selector.
func (s ExplicitSelector) Resolve() (string, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return "", &ConfigurationError{Path: "(empty)", Reason: "no input path given"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &ConfigurationError{Path: path, Reason: "does not exist"}
		}
		return "", &ConfigurationError{Path: path, Reason: "stat failed", Err: err}
	}
	if !info.IsDir() {
		return "", &ConfigurationError{Path: path, Reason: "is not a directory"}
	}
	return path, nil
}

// Describe implements Selector.
func (s ExplicitSelector) Describe() string { return "explicit " + s.Path }

// LatestSelector picks the lexically greatest subdirectory of Root. Stage 1
// names its run directories with sortable timestamps, so this is the most
// recent run.
type LatestSelector struct {
	Root string
}

// Resolve implements Selector.
func (s LatestSelector) Resolve() (string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &ConfigurationError{Path: s.Root, Reason: "no data at input root"}
		}
		return "", &ConfigurationError{Path: s.Root, Reason: "read input root", Err: err}
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry.Name())
		}
	}
	if len(dirs) == 0 {
		return "", &ConfigurationError{Path: s.Root, Reason: "no subdirectories found"}
	}
	sort.Strings(dirs)
	return filepath.Join(s.Root, dirs[len(dirs)-1]), nil
}

// Describe implements Selector.
func (s LatestSelector) Describe() string { return "latest under " + s.Root }

// NewSelector returns an ExplicitSelector when explicit is set, otherwise a
// LatestSelector over root.
func NewSelector(explicit, root string) Selector {
	if strings.TrimSpace(explicit) != "" {
		return ExplicitSelector{Path: explicit}
	}
	return LatestSelector{Root: root}
}
