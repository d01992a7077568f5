// Package config reads per-project orchestrator settings from
// .corral/config.yaml. A missing file yields the defaults; a present
// but malformed file is an error, never silently defaulted.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the filename inside the project state directory.
const ConfigFile = "config.yaml"

// Config models .corral/config.yaml.
type Config struct {
	// MaxIterations is the default iteration budget for new sprints.
	MaxIterations int `yaml:"max_iterations"`
	// Checkpoints are iteration counts that trigger an assessment signal.
	Checkpoints []int `yaml:"checkpoints"`
	// PersistRetries bounds retry of transient registry write failures.
	PersistRetries int `yaml:"persist_retries"`
	// ContextSources are project-relative files whose digest backs the
	// foundation and staleness checks.
	ContextSources []string `yaml:"context_sources"`
}

// Default returns the configuration used when no config.yaml exists.
func Default() Config {
	return Config{
		MaxIterations:  50,
		Checkpoints:    []int{10, 25, 40, 60},
		PersistRetries: 3,
		ContextSources: []string{
			"documentation/architecture.md",
			"documentation/requirements.md",
			"documentation/conventions.md",
		},
	}
}

// Path returns the absolute path to a project's config.yaml.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, ".corral", ConfigFile)
}

// Load reads the project configuration. Missing file returns defaults;
// a malformed file is an error. Zero or negative values fall back to
// the corresponding default so a sparse config stays usable.
func Load(projectRoot string) (Config, error) {
	data, err := os.ReadFile(Path(projectRoot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config.yaml: %w", err)
	}

	def := Default()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if len(cfg.Checkpoints) == 0 {
		cfg.Checkpoints = def.Checkpoints
	}
	if cfg.PersistRetries <= 0 {
		cfg.PersistRetries = def.PersistRetries
	}
	if len(cfg.ContextSources) == 0 {
		cfg.ContextSources = def.ContextSources
	}
	return cfg, nil
}

// Save writes the configuration to .corral/config.yaml, creating the
// state directory if needed.
func Save(projectRoot string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := Path(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
