// Package config loads service settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
// ProgressDB is a SQLite path, or "memory" for the in-process store.
type Config struct {
	Addr       string `yaml:"addr"`
	WorkDir    string `yaml:"work_dir"`
	ProgressDB string `yaml:"progress_db"`

	// Metadata writer
	ExifTool        string        `yaml:"exiftool"`
	ExifToolTimeout time.Duration `yaml:"exiftool_timeout"`

	// Batch lifetime
	Retention    time.Duration `yaml:"retention"`
	ReapInterval time.Duration `yaml:"reap_interval"`

	MaxUploadMB int64 `yaml:"max_upload_mb"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Denylist replaces the built-in list of non-writable tag prefixes when
	// set.
	Denylist []string `yaml:"denylist"`
}

// Default returns the built-in settings.
func Default() Config {
	work := filepath.Join(os.TempDir(), "phototagger")
	return Config{
		Addr:            "127.0.0.1:7070",
		WorkDir:         work,
		ProgressDB:      filepath.Join(work, "progress.db"),
		ExifTool:        "exiftool",
		ExifToolTimeout: 60 * time.Second,
		Retention:       time.Hour,
		ReapInterval:    10 * time.Minute,
		MaxUploadMB:     2048,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load applies environment variables over the defaults and then the YAML
// file at path, if path is not empty. A progress DB left at its default
// follows WorkDir.
func Load(path string) (Config, error) {
	cfg := Default()
	defaultDB := cfg.ProgressDB
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if cfg.ProgressDB == defaultDB {
		cfg.ProgressDB = filepath.Join(cfg.WorkDir, "progress.db")
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	c.Addr = getEnv("PHOTOTAGGER_ADDR", c.Addr)
	c.WorkDir = getEnv("PHOTOTAGGER_WORK_DIR", c.WorkDir)
	c.ProgressDB = getEnv("PHOTOTAGGER_PROGRESS_DB", c.ProgressDB)
	c.ExifTool = getEnv("PHOTOTAGGER_EXIFTOOL", c.ExifTool)
	c.LogLevel = getEnv("PHOTOTAGGER_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("PHOTOTAGGER_LOG_FORMAT", c.LogFormat)

	durations := map[string]*time.Duration{
		"PHOTOTAGGER_EXIFTOOL_TIMEOUT": &c.ExifToolTimeout,
		"PHOTOTAGGER_RETENTION":        &c.Retention,
		"PHOTOTAGGER_REAP_INTERVAL":    &c.ReapInterval,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	if v := os.Getenv("PHOTOTAGGER_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PHOTOTAGGER_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadMB = n
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty")
	case c.WorkDir == "":
		return fmt.Errorf("work_dir must not be empty")
	case c.ExifToolTimeout <= 0:
		return fmt.Errorf("exiftool_timeout must be positive")
	case c.Retention <= 0:
		return fmt.Errorf("retention must be positive")
	case c.ReapInterval <= 0:
		return fmt.Errorf("reap_interval must be positive")
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("max_upload_mb must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
