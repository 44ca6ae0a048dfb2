// Package scorestore persists score records, one JSON file per
// (combo, sample, proposal, pass) key, and answers whether a key has already
// been written.
package scorestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"themescore/internal/fileutil"
)

// TimestampLayout names default output directories.
const TimestampLayout = "20060102T150405Z"

// Key identifies exactly one score record.
type Key struct {
	ComboID       string
	SampleIndex   int
	ProposalIndex int
	PassIndex     int
}

// FileName returns the deterministic record file name for the key.
func (k Key) FileName() string {
	return fmt.Sprintf("%s__sample%d__%d__pass%d.json", k.ComboID, k.SampleIndex, k.ProposalIndex, k.PassIndex)
}

// ParseFileName reverses FileName. Combo ids may themselves contain "__", so
// the numeric fields are taken from the right.
func ParseFileName(name string) (Key, bool) {
	stem, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return Key{}, false
	}
	parts := strings.Split(stem, "__")
	if len(parts) < 4 {
		return Key{}, false
	}
	n := len(parts)
	sample, ok1 := trimInt(parts[n-3], "sample")
	proposal, ok2 := trimInt(parts[n-2], "")
	pass, ok3 := trimInt(parts[n-1], "pass")
	if !ok1 || !ok2 || !ok3 {
		return Key{}, false
	}
	return Key{
		ComboID:       strings.Join(parts[:n-3], "__"),
		SampleIndex:   sample,
		ProposalIndex: proposal,
		PassIndex:     pass,
	}, true
}

func trimInt(s, prefix string) (int, bool) {
	s, ok := strings.CutPrefix(s, prefix)
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Store writes records below a single output directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDir returns <root>/<UTC timestamp> for a fresh run.
func DefaultDir(root string, now time.Time) string {
	return filepath.Join(root, now.UTC().Format(TimestampLayout))
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the full path for key.
func (s *Store) Path(key Key) string {
	return filepath.Join(s.dir, key.FileName())
}

// Exists reports whether a record for key has been written.
func (s *Store) Exists(key Key) (bool, error) {
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat record %s: %w", key.FileName(), err)
}

// Write encodes record as JSON and atomically places it at key's path,
// returning that path.
func (s *Store) Write(key Key, record any) (string, error) {
	path := s.Path(key)
	if err := fileutil.WriteJSONAtomic(path, record); err != nil {
		return "", fmt.Errorf("write record %s: %w", key.FileName(), err)
	}
	return path, nil
}

// Entry is one record file found by List.
type Entry struct {
	Name string
	Key  Key
}

// List returns the record files in the store, sorted by name. In-flight temp
// files and names that do not parse as record keys are ignored. A missing
// directory yields an empty list.
func (s *Store) List() ([]Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list records: %w", err)
	}
	var out []Entry
	for _, entry := range entries {
		if entry.IsDir() || fileutil.IsTempName(entry.Name()) {
			continue
		}
		key, ok := ParseFileName(entry.Name())
		if !ok {
			continue
		}
		out = append(out, Entry{Name: entry.Name(), Key: key})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read decodes the record file name into v.
func (s *Store) Read(name string, v any) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("read record %q: invalid name", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("read record %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode record %s: %w", name, err)
	}
	return nil
}
