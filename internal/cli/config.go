package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/store"
)

// DefaultConfigFile is read from the working directory when --config is
// not given. A missing default file means built-in defaults.
const DefaultConfigFile = "idlc.yaml"

// Config is the project configuration read from idlc.yaml:
//
//	targets:
//	  - name: go
//	    formats: [json, binary]
//	max_errors: 50
//	emit: json
//	store:
//	  path: .idlc/runs.db
//	  compression: zstd
type Config struct {
	Targets   []codegen.Target `yaml:"targets"`
	MaxErrors int              `yaml:"max_errors"`
	Emit      string           `yaml:"emit"`
	Attrs     string           `yaml:"attrs"`
	Store     StoreConfig      `yaml:"store"`
}

// StoreConfig configures the run store.
type StoreConfig struct {
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`
}

// DefaultConfig returns the configuration used when no file is present:
// one target generating every format.
func DefaultConfig() *Config {
	return &Config{
		Targets:   []codegen.Target{{Name: "default", Formats: append([]ir.Format(nil), ir.Formats...)}},
		MaxErrors: 0,
		Emit:      "json",
		Store:     StoreConfig{Compression: "zstd"},
	}
}

// LoadConfig reads path. An empty path tries DefaultConfigFile and falls
// back to DefaultConfig when it does not exist.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a configuration document. Unknown keys are errors.
// Omitted settings keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Targets = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = DefaultConfig().Targets
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	names := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("config: targets[%d]: name is required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("config: duplicate target %q", t.Name)
		}
		names[t.Name] = true
		if len(t.Formats) == 0 {
			return fmt.Errorf("config: target %s: formats list is required", t.Name)
		}
		for _, f := range t.Formats {
			if _, err := ir.ParseFormat(string(f)); err != nil {
				return fmt.Errorf("config: target %s: %w", t.Name, err)
			}
		}
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("config: max_errors must not be negative")
	}
	if c.Emit != "json" && c.Emit != "cbor" {
		return fmt.Errorf("config: emit must be json or cbor, got %q", c.Emit)
	}
	if _, err := store.ParseCompression(c.Store.Compression); err != nil {
		return fmt.Errorf("config: store: %w", err)
	}
	return nil
}

// Compression returns the configured store codec.
func (c *Config) Compression() store.Compression {
	comp, _ := store.ParseCompression(c.Store.Compression)
	return comp
}
