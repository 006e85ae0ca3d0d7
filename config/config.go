package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data        DataConfig       `yaml:"data"`
	Storage     StorageConfig    `yaml:"storage"`
	Index       IndexConfig      `yaml:"index"`
	Experiments ExperimentConfig `yaml:"experiments"`
	Log         LogConfig        `yaml:"log"`
}

type DataConfig struct {
	Path       string `yaml:"path"`        // TSV file: tconst, averageRating, numVotes
	ResultsDir string `yaml:"results_dir"` // CSV results and charts
}

type StorageConfig struct {
	PoolSize  int `yaml:"pool_size"`  // bytes
	BlockSize int `yaml:"block_size"` // bytes
}

type IndexConfig struct {
	Capacity int `yaml:"capacity"` // max keys per B+ tree node
	// Comparison backends measured next to the B+ tree:
	// lsm, memtree, sqlite, list.
	Backends   []string `yaml:"backends"`
	LSMDir     string   `yaml:"lsm_dir"`     // empty: in memory
	SQLitePath string   `yaml:"sqlite_path"` // empty: in memory
}

type Range struct {
	Min int64 `yaml:"min"`
	Max int64 `yaml:"max"`
}

type ExperimentConfig struct {
	Ranges      []Range `yaml:"ranges"` // experiments 3 and 4
	DeleteKey   int64   `yaml:"delete_key"`
	WorkloadOps int     `yaml:"workload_ops"`
	Seed        uint64  `yaml:"seed"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // json or console
	File     string `yaml:"file"`     // also log here when set
}

var (
	defaultBackends = []string{"lsm", "memtree", "sqlite", "list"}
	defaultRanges   = []Range{{Min: 500, Max: 500}, {Min: 30000, Max: 40000}}
)

func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Data: DataConfig{
			Path:       "data/data.tsv",
			ResultsDir: "results",
		},
		Storage: StorageConfig{
			PoolSize:  500_000_000,
			BlockSize: 200,
		},
		Index: IndexConfig{
			Capacity: 25,
			Backends: defaultBackends,
		},
		Experiments: ExperimentConfig{
			Ranges:      defaultRanges,
			DeleteKey:   1000,
			WorkloadOps: 10_000,
			Seed:        42,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}

	if configPath == "" {
		for _, p := range []string{"configs/ratingidx.yaml", "ratingidx.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, errors.Wrapf(err, "config: parse %s", p)
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, errors.Wrap(err, "config: read")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parse %s", configPath)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.BlockSize <= 0 {
		cfg.Storage.BlockSize = 200
	}
	if cfg.Storage.PoolSize <= 0 {
		cfg.Storage.PoolSize = 500_000_000
	}
	if cfg.Index.Capacity <= 0 {
		cfg.Index.Capacity = 25
	}
	if len(cfg.Experiments.Ranges) == 0 {
		cfg.Experiments.Ranges = defaultRanges
	}
	if cfg.Experiments.WorkloadOps <= 0 {
		cfg.Experiments.WorkloadOps = 10_000
	}
	if cfg.Data.ResultsDir == "" {
		cfg.Data.ResultsDir = "results"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "console"
	}
}

// Build returns a logger writing to stderr and, when File is set, to File.
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "config: log level %q", c.Level)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = c.Encoding
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Sampling = nil
	zc.OutputPaths = []string{"stderr"}
	if c.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, c.File)
	}
	log, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "config: build logger")
	}
	return log, nil
}
