package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/qualname/internal/qualname"
)

// FileName is the per-repository configuration file.
const FileName = ".qualnameconfig"

// Config holds user-overridable settings, loaded from .qualnameconfig in
// the repository root.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	Index    IndexConfig    `yaml:"index"`
}

// ResolverConfig tunes mapping construction.
type ResolverConfig struct {
	// LocalsMarker replaces "<locals>" in qualified names.
	LocalsMarker string `yaml:"locals_marker"`

	// MaxDecoratorLines caps decorator lines skipped per definition.
	// Default: 0 (bounded by file length).
	MaxDecoratorLines *int `yaml:"max_decorator_lines"`
}

// IndexConfig tunes repository indexing.
type IndexConfig struct {
	// ExcludeDirs are directory globs skipped in addition to the built-in list.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Workers bounds parallel hashing and parsing. Default: GOMAXPROCS.
	Workers *int `yaml:"workers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads .qualnameconfig from the given directory.
// Returns default config if the file doesn't exist.
func Load(dir string) *Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg // missing or unreadable: defaults
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig() // invalid YAML: defaults
	}

	return cfg
}

// EffectiveMaxDecoratorLines returns the configured cap, or 0 if unset or
// negative.
func (c *Config) EffectiveMaxDecoratorLines() int {
	if c.Resolver.MaxDecoratorLines != nil && *c.Resolver.MaxDecoratorLines > 0 {
		return *c.Resolver.MaxDecoratorLines
	}
	return 0
}

// EffectiveWorkers returns the configured worker count, or GOMAXPROCS.
func (c *Config) EffectiveWorkers() int {
	if c.Index.Workers != nil && *c.Index.Workers > 0 {
		return *c.Index.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// QualnameOptions converts the resolver settings into build options.
func (c *Config) QualnameOptions() qualname.Options {
	return qualname.Options{
		LocalsMarker:      c.Resolver.LocalsMarker,
		MaxDecoratorLines: c.EffectiveMaxDecoratorLines(),
	}
}
