// Package config loads the tunables that govern the collector and the
// compiler's advisory type checker from a YAML file, falling back to
// fixed defaults when no file is given.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/erkao-lang/erkao/internal/gc"
)

// Config is the full set of tunables a host program may override. GC
// fields mirror gc.Config directly; the rest govern the compiler.
type Config struct {
	GC struct {
		MinThreshold     int     `yaml:"minThreshold"`
		PromotionAge     uint8   `yaml:"promotionAge"`
		MaxPromotionRate float64 `yaml:"maxPromotionRate"`
	} `yaml:"gc"`

	// EnableTypeChecker turns on the advisory stack-discipline type
	// checker during compilation (spec.md §4.5). Diagnostics never
	// block codegen either way; this only controls whether they are
	// collected at all.
	EnableTypeChecker bool `yaml:"enableTypeChecker"`

	// StrictThreading turns on the vmguard single-mutator-goroutine
	// assertion at runtime (spec.md §5). Off by default since the
	// assertion costs a goroutine-id lookup per check.
	StrictThreading bool `yaml:"strictThreading"`
}

// Default returns the zero-value-free defaults every field falls back
// to when absent from a loaded file.
func Default() Config {
	var cfg Config
	cfg.GC.MinThreshold = 64 * 1024
	cfg.GC.PromotionAge = 2
	cfg.GC.MaxPromotionRate = 0.5
	cfg.EnableTypeChecker = true
	cfg.StrictThreading = false
	return cfg
}

// Load reads and parses a YAML config file at path, applying Default()
// for any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, nil
}

// GCConfig projects the GC-relevant fields into a gc.Config, ready to
// pass to gc.New.
func (c Config) GCConfig() gc.Config {
	return gc.Config{
		MinThreshold:     c.GC.MinThreshold,
		PromotionAge:     c.GC.PromotionAge,
		MaxPromotionRate: c.GC.MaxPromotionRate,
	}
}
