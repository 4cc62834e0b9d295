// Package config provides configuration loading and access for the
// simulation, following the same embedded-defaults-plus-override-file
// pattern as the teacher project's config package.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable of the simulation kernel, grouped by the
// §9 "Global constants" note: group them into a single immutable
// configuration passed into the simulator at construction.
type Config struct {
	Shell   ShellConfig   `yaml:"shell"`
	Reaction ReactionConfig `yaml:"reaction"`
	Multi   MultiConfig   `yaml:"multi"`
	Pair    PairConfig    `yaml:"pair"`
	Numeric NumericConfig `yaml:"numeric"`
	RNG     RNGConfig     `yaml:"rng"`

	Derived DerivedConfig `yaml:"-"`
}

// ShellConfig holds the shell-sizing constants used by the Shell
// Constructor (§4.5).
type ShellConfig struct {
	Factor float64 `yaml:"factor"` // SHELL_FACTOR, 1.5 in the reference
	Mergin float64 `yaml:"mergin"` // MERGIN, 1 - 1e-7 in the reference
}

// ReactionConfig holds Reaction Engine constants (§4.7).
type ReactionConfig struct {
	SplitRetryCap        int     `yaml:"split_retry_cap"`
	SplitSeparationScale float64 `yaml:"split_separation_scale"` // sigma_sep initial value, doubled per retry
}

// MultiConfig holds Multi Builder / BD-stepping constants (§4.4, §4.9).
type MultiConfig struct {
	BDMicroStepCap int     `yaml:"bd_microstep_cap"` // cap 100 in the reference
	Horizon        float64 `yaml:"horizon"`          // fixed BD horizon, in simulated time
	ReactionEps    float64 `yaml:"reaction_eps"`     // separation margin that triggers a reaction attempt
}

// PairConfig holds form_pair constants (§4.8).
type PairConfig struct {
	SizeFactor float64 `yaml:"size_factor"` // the tunable factor 3 in sh_minim
}

// NumericConfig holds the single configurable tolerance used for every
// geometric comparison (§9: "all geometric comparisons should use a
// single configurable epsilon").
type NumericConfig struct {
	Epsilon                 float64 `yaml:"epsilon"`
	MinimumSeparationFactor float64 `yaml:"minimum_separation_factor"` // 1e-7 in the reference
}

// RNGConfig seeds the deterministic random stream (§5).
type RNGConfig struct {
	Seed uint64 `yaml:"seed"`
}

// DerivedConfig holds values computed after loading.
type DerivedConfig struct {
	// Mergin defaults to 1 - MinimumSeparationFactor when the user
	// overrides only the separation factor and leaves shell.mergin at
	// its embedded-default value.
	EffectiveMergin float64
}

// global holds the loaded configuration for package-level access,
// mirroring the teacher's config.Init/config.Cfg singleton.
var global *Config

// Init loads configuration from path (embedded defaults if empty) and
// stores it as the package-level singleton. Must be called before Cfg.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) computeDerived() {
	c.Derived.EffectiveMergin = c.Shell.Mergin
	var def Config
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		return
	}
	if c.Shell.Mergin == def.Shell.Mergin && c.Numeric.MinimumSeparationFactor != def.Numeric.MinimumSeparationFactor {
		c.Derived.EffectiveMergin = 1 - c.Numeric.MinimumSeparationFactor
	}
}

// WriteYAML saves the configuration as YAML, for checkpointing a run
// alongside its telemetry.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
