package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the user-level hudo directory.
const FileName = "config.yaml"

// Config captures the desired toolchain settings for a workstation.
type Config struct {
	RootDir   string            `yaml:"root_dir"`
	Versions  map[string]string `yaml:"versions,omitempty"`
	Mirrors   map[string]string `yaml:"mirrors,omitempty"`
	Detect    DetectConfig      `yaml:"detect"`
	Elevation ElevationConfig   `yaml:"elevation"`
	Log       LogConfig         `yaml:"log"`
}

// DetectConfig bounds thorough detection probes.
type DetectConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`
}

// ElevationConfig controls the post-action verification poll.
type ElevationConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LogConfig selects the log level written to the log file.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the baseline configuration.
func Default() Config {
	root := ""
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, "hudo")
	}
	return Config{
		RootDir:  root,
		Versions: map[string]string{},
		Mirrors:  map[string]string{},
		Detect: DetectConfig{
			Timeout:     10 * time.Second,
			Parallelism: 4,
		},
		Elevation: ElevationConfig{
			PollInterval: 500 * time.Millisecond,
			Timeout:      30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the configuration to path, replacing any existing file atomically.
func (c Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare config dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	c.RootDir = strings.TrimSpace(c.RootDir)
	if c.RootDir == "" {
		c.RootDir = defaults.RootDir
	}
	if c.Versions == nil {
		c.Versions = map[string]string{}
	}
	if c.Mirrors == nil {
		c.Mirrors = map[string]string{}
	}
	if c.Detect.Timeout <= 0 {
		c.Detect.Timeout = defaults.Detect.Timeout
	}
	if c.Detect.Parallelism <= 0 {
		c.Detect.Parallelism = defaults.Detect.Parallelism
	}
	if c.Elevation.PollInterval <= 0 {
		c.Elevation.PollInterval = defaults.Elevation.PollInterval
	}
	if c.Elevation.Timeout <= 0 {
		c.Elevation.Timeout = defaults.Elevation.Timeout
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

// Lock returns the pinned version for a tool, if any.
func (c Config) Lock(id string) (string, bool) {
	v, ok := c.Versions[id]
	v = strings.TrimSpace(v)
	if !ok || v == "" || strings.EqualFold(v, "latest") {
		return "", false
	}
	return v, true
}

// Mirror returns the configured download base for a tool, if any.
func (c Config) Mirror(id string) (string, bool) {
	v := strings.TrimSpace(c.Mirrors[id])
	if v == "" {
		return "", false
	}
	return v, true
}

// WithLock returns a copy of c with the version for id pinned to version.
// The receiver's maps are not modified.
func (c Config) WithLock(id, version string) Config {
	out := c
	out.Versions = cloneMap(c.Versions)
	out.Versions[id] = version
	return out
}

// WithMirrors returns a copy of c with the provided mirrors filled in where c
// has none configured.
func (c Config) WithMirrors(mirrors map[string]string) Config {
	out := c
	out.Mirrors = cloneMap(c.Mirrors)
	for id, base := range mirrors {
		if _, ok := out.Mirror(id); ok {
			continue
		}
		out.Mirrors[id] = base
	}
	return out
}

// WithVersions returns a copy of c with the provided version locks filled in
// where c has no lock of its own.
func (c Config) WithVersions(versions map[string]string) Config {
	out := c
	out.Versions = cloneMap(c.Versions)
	for id, v := range versions {
		if _, ok := out.Lock(id); ok {
			continue
		}
		out.Versions[id] = v
	}
	return out
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
