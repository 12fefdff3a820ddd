package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is hospicon's top-level `<config_file>` argument. In the
// original sti-hpc program this file configured repast-HPC internals
// opaquely; here it carries the ambient, non-domain run settings a
// deployed Go service needs (output location, RNG seed, observability
// endpoints, optional archival sinks), following the teacher's own
// YAML cluster-config convention (cmd/graphdb-upgrade).
type RunConfig struct {
	OutputDir   string `yaml:"output_dir"`
	RNGSeedBase int64  `yaml:"rng_seed_base"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`

	StatsSQLitePath   string `yaml:"stats_sqlite_path"`
	StatsPostgresDSN  string `yaml:"stats_postgres_dsn"`
	ArchiveS3Bucket   string `yaml:"archive_s3_bucket"`
	ArchiveS3Prefix   string `yaml:"archive_s3_prefix"`
}

// DefaultRunConfig returns the zero-value-safe defaults applied when
// a run config omits a field.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		OutputDir:   "./output",
		RNGSeedBase: 1,
		LogLevel:    "info",
		MetricsAddr: "",
	}
}

// LoadRunConfig reads and parses a YAML run configuration file,
// filling unset fields from DefaultRunConfig.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config: %w", err)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	return cfg, nil
}
