package themes

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Theme is a catalogued named entity. Data keeps the full decoded definition;
// the scorer only relies on ID and Name.
type Theme struct {
	ID   string
	Name string
	Data map[string]any
}

// MarshalJSON emits the full definition with id and name guaranteed present.
func (t Theme) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Data)+2)
	for k, v := range t.Data {
		out[k] = v
	}
	out["id"] = t.ID
	out["name"] = t.Name
	return json.Marshal(out)
}

// Key folds an identifier for case-insensitive comparison. A new Caser is used
// per call because cases.Caser is not safe for concurrent use.
func Key(value string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(value))
}

// slugKey folds separators so "Mind Control", "mind-control" and
// "mind_control" address the same theme.
func slugKey(value string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(Key(value))
}

// decodeTheme parses a theme definition in JSON or YAML. Missing ids fall back
// to the file stem and missing names to the id.
func decodeTheme(path string, data []byte) (Theme, error) {
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Theme{}, fmt.Errorf("decode yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return Theme{}, fmt.Errorf("decode json %s: %w", path, err)
		}
	}
	return themeFromMap(raw, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func themeFromMap(raw map[string]any, fallbackID string) (Theme, error) {
	id := stringField(raw, "id")
	name := stringField(raw, "name")
	if id == "" {
		id = strings.TrimSpace(fallbackID)
	}
	if name == "" {
		name = id
	}
	if id == "" {
		return Theme{}, fmt.Errorf("theme definition has no id or name")
	}
	return Theme{ID: id, Name: name, Data: raw}, nil
}

func stringField(raw map[string]any, key string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
