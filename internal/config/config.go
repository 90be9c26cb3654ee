// Package config loads the repository configuration (chunking sizes,
// compression, storage backend, optional encryption) from YAML. Adapted
// from the teacher's internal/config.Config, narrowed to this engine's
// scope (no snapshot/exclusion settings) and changed in one deliberate
// way: Validate rejects a bad config outright instead of silently
// coercing it, since silent auto-correction of chunking parameters would
// make a `.caibx` produced under one "corrected" config quietly
// incompatible with one produced under the config the user actually
// wrote down.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/pkg/chunk"
)

// Config is the top-level repository configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

// StoreConfig selects and configures the ChunkStore backend.
type StoreConfig struct {
	Kind string    `yaml:"kind"` // "local" or "s3"
	Path string    `yaml:"path"` // local root, when Kind == "local"
	S3   S3Config  `yaml:"s3"`
}

// S3Config mirrors store.S3Config's fields for YAML loading; cmd/casyncd
// builds a store.S3Config from this at wiring time, so config does not
// import internal/store and stays free of store's aws-sdk-go-v2
// dependency.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Prefix       string `yaml:"prefix"`
	MaxBandwidth int64  `yaml:"max_bandwidth"`
}

// ChunkingConfig is the YAML-facing form of pkg/chunk.Config.
type ChunkingConfig struct {
	MinSize     uint64 `yaml:"min_size"`
	AvgSize     uint64 `yaml:"avg_size"`
	MaxSize     uint64 `yaml:"max_size"`
	Compression string `yaml:"compression"` // "zstd" or "none"
	Level       int    `yaml:"level"`
}

// EncryptionConfig enables wrapping the store in an EncryptedStore.
type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Passphrase is read from the CASYNCD_PASSPHRASE environment
	// variable, or from a terminal prompt when that is unset, at wiring
	// time; it is never stored in the config file itself.
}

// Default returns the baseline configuration: a local store rooted at
// "./store" and desync's own default chunk sizes.
func Default() Config {
	return Config{
		Store: StoreConfig{Kind: "local", Path: "./store"},
		Chunking: ChunkingConfig{
			MinSize:     16 * 1024,
			AvgSize:     64 * 1024,
			MaxSize:     256 * 1024,
			Compression: "zstd",
			Level:       1,
		},
	}
}

// Load reads and parses a YAML config file onto Default(), so fields the
// file omits keep their default values, then validates the result. Any
// field that is present but illegal makes Load fail with Validate's
// error instead of being corrected.
func Load(path string) (Config, error) {
	const op = "config.Load"
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, cdcerr.New(cdcerr.IoError, op, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, cdcerr.New(cdcerr.ConfigError, op, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func (c Config) Save(path string) error {
	const op = "config.Config.Save"
	data, err := yaml.Marshal(c)
	if err != nil {
		return cdcerr.New(cdcerr.ConfigError, op, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	return nil
}

// ChunkConfig converts the YAML chunking section into pkg/chunk.Config.
func (c Config) ChunkConfig() (chunk.Config, error) {
	comp, err := chunk.ParseCompression(c.Chunking.Compression)
	if err != nil {
		return chunk.Config{}, err
	}
	return chunk.Config{
		MinSize:     c.Chunking.MinSize,
		AvgSize:     c.Chunking.AvgSize,
		MaxSize:     c.Chunking.MaxSize,
		Compression: comp,
		Level:       c.Chunking.Level,
	}, nil
}

// Validate rejects, rather than silently repairs, every malformed field.
func (c Config) Validate() error {
	const op = "config.Config.Validate"

	switch c.Store.Kind {
	case "local":
		if c.Store.Path == "" {
			return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("store.path is required when store.kind is \"local\""))
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("store.s3.bucket is required when store.kind is \"s3\""))
		}
	default:
		return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("unknown store.kind %q, want \"local\" or \"s3\"", c.Store.Kind))
	}

	if _, err := c.ChunkConfig(); err != nil {
		return err
	}
	cc, _ := c.ChunkConfig()
	if err := cc.Validate(); err != nil {
		return err
	}

	return nil
}
