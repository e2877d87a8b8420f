// Package config provides unified configuration for the meridian catalog.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the catalog process configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Engine configuration
	Engine EngineConfig `json:"engine" yaml:"engine"`
}

// EngineConfig holds storage engine configuration.
type EngineConfig struct {
	// Type is the engine type: sqlite, s3, memory
	Type string `json:"type" yaml:"type"`

	// Path is the database file path (for sqlite type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 engine configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Root is the key prefix under which catalog records live
	Root string `json:"root" yaml:"root"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/meridian",
		Engine: EngineConfig{
			Type: "sqlite",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/meridian"
	}
	if c.Engine.Path == "" {
		c.Engine.Path = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.Engine.S3.Root == "" {
		c.Engine.S3.Root = "catalog"
	}
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	if c.Engine.Path != "" {
		return c.Engine.Path
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Engine.Type {
	case "sqlite", "memory":
		// Valid engine types
	case "s3":
		if c.Engine.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when engine type is s3")
		}
	default:
		return fmt.Errorf("invalid engine type: %s (must be sqlite, s3, or memory)", c.Engine.Type)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MERIDIAN_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MERIDIAN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MERIDIAN_ENGINE_TYPE"); v != "" {
		cfg.Engine.Type = v
	}
	if v := os.Getenv("MERIDIAN_ENGINE_PATH"); v != "" {
		cfg.Engine.Path = v
	}
	if v := os.Getenv("MERIDIAN_S3_BUCKET"); v != "" {
		cfg.Engine.S3.Bucket = v
	}
	if v := os.Getenv("MERIDIAN_S3_REGION"); v != "" {
		cfg.Engine.S3.Region = v
	}
	if v := os.Getenv("MERIDIAN_S3_ENDPOINT"); v != "" {
		cfg.Engine.S3.Endpoint = v
	}
	if v := os.Getenv("MERIDIAN_S3_ROOT"); v != "" {
		cfg.Engine.S3.Root = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Engine.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.CatalogPath()))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
