package proposals

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeBatchFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDirDecodesBatchesInFileOrder(t *testing.T) {
	dir := t.TempDir()
	writeBatchFile(t, dir, "b_combo.json", `{
		"sources": ["obedience", "trance"],
		"sample_index": 2,
		"parsed": {"proposals": [
			{"target_id": "mind_control", "target_name": "Mind Control", "rationale": "  overlaps  ", "confidence_hint": 0.7},
			{"target_name": "Hypnosis"},
			"not an object"
		]}
	}`)
	writeBatchFile(t, dir, "a_combo.json", `{"sources": ["a"], "parsed": {"proposals": []}}`)
	writeBatchFile(t, dir, "notes.txt", "ignored")

	batches, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].ComboID != "a_combo" || batches[1].ComboID != "b_combo" {
		t.Fatalf("unexpected order: %s, %s", batches[0].ComboID, batches[1].ComboID)
	}
	if batches[0].SampleIndex != 0 || len(batches[0].Proposals) != 0 {
		t.Fatalf("unexpected first batch: %+v", batches[0])
	}

	b := batches[1]
	if b.SampleIndex != 2 {
		t.Fatalf("sample index = %d, want 2", b.SampleIndex)
	}
	if len(b.Sources) != 2 || b.Sources[1] != "trance" {
		t.Fatalf("unexpected sources: %v", b.Sources)
	}
	if len(b.Proposals) != 3 {
		t.Fatalf("expected 3 proposals, got %d", len(b.Proposals))
	}
	first := b.Proposals[0]
	if first.TargetID != "mind_control" || first.TargetName != "Mind Control" {
		t.Fatalf("unexpected target: %+v", first)
	}
	if first.Rationale != "overlaps" {
		t.Fatalf("rationale not trimmed: %q", first.Rationale)
	}
	if string(first.ConfidenceHint) != "0.7" {
		t.Fatalf("confidence hint = %s", first.ConfidenceHint)
	}
	if filepath.Base(b.SourcePath) != "b_combo.json" {
		t.Fatalf("source path = %s", b.SourcePath)
	}

	id, name, ok := b.Proposals[1].Target()
	if !ok || id != "Hypnosis" || name != "Hypnosis" {
		t.Fatalf("name-only fallback: id=%q name=%q ok=%v", id, name, ok)
	}
	if _, _, ok := b.Proposals[2].Target(); ok {
		t.Fatal("non-object proposal should have no target")
	}
	if string(b.Proposals[2].Raw) != `"not an object"` {
		t.Fatalf("raw not preserved: %s", b.Proposals[2].Raw)
	}
}

func TestDecodeBatchNumericTargetID(t *testing.T) {
	batch, err := DecodeBatch("x.json", []byte(`{"sources":[],"parsed":{"proposals":[{"target_id": 42}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	id, name, ok := batch.Proposals[0].Target()
	if !ok || id != "42" || name != "42" {
		t.Fatalf("id=%q name=%q ok=%v", id, name, ok)
	}
}

func TestDecodeBatchMissingParsedHasNoProposals(t *testing.T) {
	batch, err := DecodeBatch("x.json", []byte(`{"sources":["a"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Proposals) != 0 {
		t.Fatalf("expected no proposals, got %d", len(batch.Proposals))
	}
}

func TestDecodeBatchRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"sources": [`,
		"sources not list": `{"sources": "a"}`,
		"negative sample":  `{"sources": [], "sample_index": -1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBatch("bad.json", []byte(body))
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
		})
	}
}

func TestLoadDirEmptyIsConfigurationError(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLatestSelectorPicksGreatestSubdirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"20240101T000000", "20240301T120000", "20240201T000000", ".hidden"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeBatchFile(t, root, "zzz.json", "{}")

	got, err := LatestSelector{Root: root}.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "20240301T120000" {
		t.Fatalf("picked %s", got)
	}
}

func TestSelectorErrors(t *testing.T) {
	root := t.TempDir()
	file := writeBatchFile(t, root, "file.json", "{}")

	cases := []struct {
		name     string
		selector Selector
	}{
		{"missing root", LatestSelector{Root: filepath.Join(root, "missing")}},
		{"no subdirectories", LatestSelector{Root: root}},
		{"explicit missing", ExplicitSelector{Path: filepath.Join(root, "nope")}},
		{"explicit file", ExplicitSelector{Path: file}},
		{"explicit empty", ExplicitSelector{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.selector.Resolve()
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestNewSelector(t *testing.T) {
	if _, ok := NewSelector("/tmp/x", "/root").(ExplicitSelector); !ok {
		t.Fatal("explicit path should produce ExplicitSelector")
	}
	if _, ok := NewSelector("  ", "/root").(LatestSelector); !ok {
		t.Fatal("blank path should produce LatestSelector")
	}
}

func TestLoadResolvesSelector(t *testing.T) {
	root := t.TempDir()
	run := filepath.Join(root, "20240101")
	if err := os.Mkdir(run, 0o755); err != nil {
		t.Fatal(err)
	}
	writeBatchFile(t, run, "c.json", `{"sources":["a"],"parsed":{"proposals":[{"target_id":"b"}]}}`)

	dir, batches, err := Load(LatestSelector{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if dir != run || len(batches) != 1 {
		t.Fatalf("dir=%s batches=%d", dir, len(batches))
	}
}

func TestWindow(t *testing.T) {
	batches := make([]Batch, 10)
	for i := range batches {
		batches[i].ComboID = fmt.Sprintf("c%d", i)
	}

	got := Window(batches, 3, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 batches, got %d", len(got))
	}
	for i, b := range got {
		if want := fmt.Sprintf("c%d", i+3); b.ComboID != want {
			t.Fatalf("position %d = %s, want %s", i, b.ComboID, want)
		}
	}

	cases := []struct {
		start, limit, want int
	}{
		{0, NoLimit, 10},
		{8, NoLimit, 2},
		{0, -7, 10},
		{0, 0, 0},
		{3, 0, 0},
		{8, 5, 2},
		{10, 1, 0},
		{-2, 3, 3},
	}
	for _, tc := range cases {
		if got := len(Window(batches, tc.start, tc.limit)); got != tc.want {
			t.Fatalf("Window(start=%d, limit=%d) = %d batches, want %d", tc.start, tc.limit, got, tc.want)
		}
	}
}
