package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"themescore/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	stdout, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration to "+target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	requireContains(t, string(data), "[scoring]")

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite guard, got %v", err)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPasses(5))
	configPath := testsupport.WriteConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Config path: "+configPath)
	requireContains(t, stdout, "5 passes")
	requireContains(t, stdout, "Configuration valid")
}

func TestConfigValidateRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[scoring]\npasses = -2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, path, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "scoring.passes") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
