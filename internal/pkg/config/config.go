// Package config holds the session configuration. The document is parsed once
// at session start and immutable thereafter.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/owalsh/gridstage/internal/pkg/balance"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/filter"
)

// Config is the full session configuration.
type Config struct {
	RunName        string `yaml:"run_name"`
	Year           int    `yaml:"year"`
	Timeseries     string `yaml:"timeseries"` // mini, medium, full
	Copperplate    bool   `yaml:"copperplate"`
	TrackedCarrier string `yaml:"tracked_carrier"`
	ReverseLinks   bool   `yaml:"reverse_links"`

	Catalog       string `yaml:"catalog"`
	CheckpointDir string `yaml:"checkpoint_dir"`

	Balance  BalanceConfig  `yaml:"balance"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`

	Stages []StageConfig `yaml:"stages"`
}

// BalanceConfig overrides the advisory balance thresholds.
type BalanceConfig struct {
	DeficitSevere float64 `yaml:"deficit_severe"`
	Deficit       float64 `yaml:"deficit"`
	Excess        float64 `yaml:"excess"`
	ExcessSevere  float64 `yaml:"excess_severe"`
}

// OptimizeConfig controls the optimization step of a batch run.
type OptimizeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Solver  string `yaml:"solver"`
}

// ArchiveConfig wires optional event sinks. Empty endpoints disable a sink.
type ArchiveConfig struct {
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	NATSServer    string `yaml:"nats_server"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// StageConfig is one named component-addition stage of a batch run.
type StageConfig struct {
	Name    string        `yaml:"name"`
	Enabled bool          `yaml:"enabled"`
	Kind    catalog.Kind  `yaml:"kind"`
	Filter  filter.Filter `yaml:"filter"`
}

// Default returns the stock configuration.
func Default() Config {
	t := balance.DefaultThresholds()
	return Config{
		Year:           2025,
		Timeseries:     "mini",
		Copperplate:    true,
		TrackedCarrier: "electricity",
		ReverseLinks:   true,
		Catalog:        "./config/catalog/technologies.csv",
		CheckpointDir:  "./checkpoints",
		Balance: BalanceConfig{
			DeficitSevere: t.DeficitSevere,
			Deficit:       t.Deficit,
			Excess:        t.Excess,
			ExcessSevere:  t.ExcessSevere,
		},
		Optimize: OptimizeConfig{Enabled: false, Solver: "virtual"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML document at path over the defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.RunName == "" {
		cfg.RunName = fmt.Sprintf("incremental_%d_%s", cfg.Year, cfg.Timeseries)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the builder cannot act on.
func (c Config) Validate() error {
	switch c.Timeseries {
	case "mini", "medium", "full":
	default:
		return fmt.Errorf("timeseries %q: expected mini, medium or full", c.Timeseries)
	}
	if c.TrackedCarrier == "" {
		return fmt.Errorf("tracked_carrier must be set")
	}
	if c.Catalog == "" {
		return fmt.Errorf("catalog path must be set")
	}
	for _, s := range c.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage without a name")
		}
		if s.Kind != "" && !s.Kind.Valid() {
			return fmt.Errorf("stage %q: unknown component kind %q", s.Name, s.Kind)
		}
		if s.Enabled && s.Filter.Empty() {
			return fmt.Errorf("stage %q: enabled stage needs a filter", s.Name)
		}
	}
	return nil
}

// Thresholds returns the configured advisory balance bands.
func (c Config) Thresholds() balance.Thresholds {
	return balance.Thresholds{
		DeficitSevere: c.Balance.DeficitSevere,
		Deficit:       c.Balance.Deficit,
		Excess:        c.Balance.Excess,
		ExcessSevere:  c.Balance.ExcessSevere,
	}
}
