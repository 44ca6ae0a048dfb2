package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"themescore/internal/testsupport"
)

const goodScore = `{"score": 4, "verdict": "plausible", "rationale": "the sources point at it"}`

func TestScoreCommandEndToEndAndResume(t *testing.T) {
	backend := newFakeOllama(t, goodScore)
	cfg := testsupport.NewConfig(t, testsupport.WithOllamaHost(backend.server.URL), testsupport.WithPasses(2))
	testsupport.WriteTheme(t, cfg.Catalog.Dir, "betrayal", "Betrayal", nil)
	testsupport.WriteTheme(t, cfg.Catalog.Dir, "revenge", "Revenge", nil)
	testsupport.WriteTheme(t, cfg.Catalog.Dir, "tragedy", "Tragedy", map[string]any{"summary": "downfall"})

	runDir := filepath.Join(cfg.Paths.RawInputRoot, "20250101T000000Z")
	testsupport.WriteBatch(t, runDir, "combo_a", 0, []string{"betrayal", "revenge"},
		testsupport.TestProposal{TargetID: "tragedy", Rationale: "both lead to ruin"},
		testsupport.TestProposal{TargetName: "Unknown Theme"},
	)
	configPath := testsupport.WriteConfig(t, cfg)

	base := testsupport.BaseDir(cfg)
	outDir := filepath.Join(base, "out")
	progressPath := filepath.Join(base, "progress.log")

	stdout, _, err := runCLI(t, configPath, "score", "--output-dir", outDir, "--progress-log", progressPath)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	requireContains(t, stdout, "Written:    2")
	if got := backend.calls.Load(); got != 2 {
		t.Fatalf("expected 2 generate calls, got %d", got)
	}
	for _, name := range []string{"combo_a__sample0__0__pass0.json", "combo_a__sample0__0__pass1.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected record %s: %v", name, err)
		}
	}

	logData, err := os.ReadFile(progressPath)
	if err != nil {
		t.Fatalf("read progress log: %v", err)
	}
	requireContains(t, string(logData), "START 1/1 combo_a")
	requireContains(t, string(logData), "SKIP missing target theme combo_a proposal 1: Unknown Theme")
	requireContains(t, string(logData), "DONE wrote results to "+outDir)

	stdout, _, err = runCLI(t, configPath, "score", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("rerun score: %v", err)
	}
	if got := backend.calls.Load(); got != 2 {
		t.Fatalf("rerun should not call the backend, got %d calls", got)
	}
	requireContains(t, stdout, "Existing:   2")

	stdout, _, err = runCLI(t, configPath, "results", outDir)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	requireContains(t, stdout, "Tragedy")
	requireContains(t, stdout, "plausible")
	requireContains(t, stdout, "2 records, 0 degraded")
}

func TestScoreCommandDefaultsToLatestInputAndTimestampedOutput(t *testing.T) {
	backend := newFakeOllama(t, "not json at all")
	cfg := testsupport.NewConfig(t, testsupport.WithOllamaHost(backend.server.URL), testsupport.WithPasses(1))
	testsupport.WriteTheme(t, cfg.Catalog.Dir, "a", "Alpha", nil)
	testsupport.WriteTheme(t, cfg.Catalog.Dir, "b", "Beta", nil)

	older := filepath.Join(cfg.Paths.RawInputRoot, "20240101T000000Z")
	newer := filepath.Join(cfg.Paths.RawInputRoot, "20250101T000000Z")
	testsupport.WriteBatch(t, older, "old_combo", 0, []string{"a"}, testsupport.TestProposal{TargetID: "b"})
	testsupport.WriteBatch(t, newer, "new_combo", 2, []string{"a"}, testsupport.TestProposal{TargetID: "b"})
	configPath := testsupport.WriteConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "score")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	requireContains(t, stdout, "Degraded:   1")

	runs, err := os.ReadDir(cfg.Paths.ScoredOutputRoot)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one timestamped output dir, got %v (err %v)", runs, err)
	}
	records, err := os.ReadDir(filepath.Join(cfg.Paths.ScoredOutputRoot, runs[0].Name()))
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(records) != 1 || records[0].Name() != "new_combo__sample2__0__pass0.json" {
		t.Fatalf("unexpected records %v", records)
	}

	stdout, _, err = runCLI(t, configPath, "results", "--degraded")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	requireContains(t, stdout, "new_combo/s2/p0")
	requireContains(t, stdout, "1 records, 1 degraded")
}

func TestScoreCommandZeroLimitScoresNothing(t *testing.T) {
	backend := newFakeOllama(t, goodScore)
	cfg := testsupport.NewConfig(t, testsupport.WithOllamaHost(backend.server.URL), testsupport.WithPasses(1))
	testsupport.WriteTheme(t, cfg.Catalog.Dir, "tragedy", "Tragedy", nil)
	runDir := filepath.Join(cfg.Paths.RawInputRoot, "20250101T000000Z")
	testsupport.WriteBatch(t, runDir, "combo_a", 0, []string{"tragedy"},
		testsupport.TestProposal{TargetID: "tragedy"},
	)
	configPath := testsupport.WriteConfig(t, cfg)
	outDir := filepath.Join(testsupport.BaseDir(cfg), "out")

	stdout, _, err := runCLI(t, configPath, "score", "--output-dir", outDir, "--limit", "0")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	requireContains(t, stdout, "Written:    0")
	if got := backend.calls.Load(); got != 0 {
		t.Fatalf("--limit 0 should not call the backend, got %d calls", got)
	}

	stdout, _, err = runCLI(t, configPath, "score", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("score without limit: %v", err)
	}
	requireContains(t, stdout, "Written:    1")
}

func TestScoreCommandMissingInputIsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := testsupport.WriteConfig(t, cfg)

	_, _, err := runCLI(t, configPath, "score")
	if err == nil || !strings.Contains(err.Error(), "no subdirectories found") {
		t.Fatalf("expected configuration error, got %v", err)
	}

	empty := filepath.Join(testsupport.BaseDir(cfg), "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	_, _, err = runCLI(t, configPath, "score", "--input", empty)
	if err == nil || !strings.Contains(err.Error(), "no *.json batch files found") {
		t.Fatalf("expected empty input error, got %v", err)
	}
}

func TestScoreCommandRejectsBadPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := testsupport.WriteConfig(t, cfg)

	_, _, err := runCLI(t, configPath, "score", "--passes", "-1")
	if err == nil || !strings.Contains(err.Error(), "passes must be >= 1") {
		t.Fatalf("expected passes validation error, got %v", err)
	}
}

func TestProgressCommandShowsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.log")
	if err := os.WriteFile(path, []byte("l1\nl2\nl3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := runCLI(t, "", "progress", path, "-n", "2")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if stdout != "l2\nl3\n" {
		t.Fatalf("unexpected output %q", stdout)
	}
}
