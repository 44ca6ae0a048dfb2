package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteJSON encodes value to path, creating parent directories.
func WriteJSON(t testing.TB, path string, value any) {
	t.Helper()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTheme stores a minimal theme definition as <dir>/<id>.json.
func WriteTheme(t testing.TB, dir, id, name string, extra map[string]any) string {
	t.Helper()

	def := map[string]any{"id": id, "name": name}
	for k, v := range extra {
		def[k] = v
	}
	path := filepath.Join(dir, id+".json")
	WriteJSON(t, path, def)
	return path
}

// TestProposal is the Stage 1 proposal shape used by fixtures.
type TestProposal struct {
	TargetID   string `json:"target_id,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Rationale  string `json:"rationale,omitempty"`
}

// WriteBatch stores a Stage 1 payload as <dir>/<combo>.json.
func WriteBatch(t testing.TB, dir, combo string, sampleIndex int, sources []string, proposals ...TestProposal) string {
	t.Helper()

	if proposals == nil {
		proposals = []TestProposal{}
	}
	payload := map[string]any{
		"sources":      sources,
		"sample_index": sampleIndex,
		"parsed":       map[string]any{"proposals": proposals},
	}
	path := filepath.Join(dir, combo+".json")
	WriteJSON(t, path, payload)
	return path
}
