package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := Load(t.TempDir())
	if cfg.EffectiveMaxDecoratorLines() != 0 {
		t.Errorf("EffectiveMaxDecoratorLines = %d, want 0", cfg.EffectiveMaxDecoratorLines())
	}
	if cfg.EffectiveWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("EffectiveWorkers = %d, want GOMAXPROCS", cfg.EffectiveWorkers())
	}
	if opts := cfg.QualnameOptions(); opts.LocalsMarker != "" {
		t.Errorf("LocalsMarker = %q, want empty", opts.LocalsMarker)
	}
}

func TestLoadValid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
resolver:
  locals_marker: "<local>"
  max_decorator_lines: 8
index:
  exclude_dirs:
    - generated
    - "third_party*"
  workers: 2
`)
	cfg := Load(dir)
	if cfg.Resolver.LocalsMarker != "<local>" {
		t.Errorf("LocalsMarker = %q", cfg.Resolver.LocalsMarker)
	}
	if cfg.EffectiveMaxDecoratorLines() != 8 {
		t.Errorf("EffectiveMaxDecoratorLines = %d, want 8", cfg.EffectiveMaxDecoratorLines())
	}
	if cfg.EffectiveWorkers() != 2 {
		t.Errorf("EffectiveWorkers = %d, want 2", cfg.EffectiveWorkers())
	}
	if len(cfg.Index.ExcludeDirs) != 2 || cfg.Index.ExcludeDirs[1] != "third_party*" {
		t.Errorf("ExcludeDirs = %v", cfg.Index.ExcludeDirs)
	}
	opts := cfg.QualnameOptions()
	if opts.LocalsMarker != "<local>" || opts.MaxDecoratorLines != 8 {
		t.Errorf("QualnameOptions = %+v", opts)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "resolver: [unclosed\n")
	cfg := Load(dir)
	if cfg.Resolver.LocalsMarker != "" || cfg.Index.Workers != nil {
		t.Errorf("invalid YAML should yield defaults, got %+v", cfg)
	}
}

func TestNegativeValuesFallBack(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "resolver:\n  max_decorator_lines: -3\nindex:\n  workers: 0\n")
	cfg := Load(dir)
	if cfg.EffectiveMaxDecoratorLines() != 0 {
		t.Errorf("EffectiveMaxDecoratorLines = %d, want 0", cfg.EffectiveMaxDecoratorLines())
	}
	if cfg.EffectiveWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("EffectiveWorkers = %d, want GOMAXPROCS", cfg.EffectiveWorkers())
	}
}
