package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Keys lists the scalar configuration keys accepted by Set and Unset.
// Map entries are addressed as "versions.<tool>" and "mirrors.<tool>".
var Keys = []string{
	"root_dir",
	"detect.timeout",
	"detect.parallelism",
	"elevation.poll_interval",
	"elevation.timeout",
	"log.level",
}

// Set assigns value to the dotted key.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if id, ok := cutPrefix(key, "versions."); ok {
		if c.Versions == nil {
			c.Versions = map[string]string{}
		}
		c.Versions[id] = value
		return nil
	}
	if id, ok := cutPrefix(key, "mirrors."); ok {
		if c.Mirrors == nil {
			c.Mirrors = map[string]string{}
		}
		c.Mirrors[id] = strings.TrimRight(value, "/")
		return nil
	}

	switch key {
	case "root_dir":
		if value == "" {
			return fmt.Errorf("root_dir must not be empty")
		}
		c.RootDir = value
	case "detect.timeout":
		d, err := parsePositiveDuration(key, value)
		if err != nil {
			return err
		}
		c.Detect.Timeout = d
	case "detect.parallelism":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		c.Detect.Parallelism = n
	case "elevation.poll_interval":
		d, err := parsePositiveDuration(key, value)
		if err != nil {
			return err
		}
		c.Elevation.PollInterval = d
	case "elevation.timeout":
		d, err := parsePositiveDuration(key, value)
		if err != nil {
			return err
		}
		c.Elevation.Timeout = d
	case "log.level":
		c.Log.Level = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Unset clears the dotted key, restoring its default where one exists.
func (c *Config) Unset(key string) error {
	key = strings.TrimSpace(key)
	if id, ok := cutPrefix(key, "versions."); ok {
		delete(c.Versions, id)
		return nil
	}
	if id, ok := cutPrefix(key, "mirrors."); ok {
		delete(c.Mirrors, id)
		return nil
	}

	defaults := Default()
	switch key {
	case "root_dir":
		c.RootDir = defaults.RootDir
	case "detect.timeout":
		c.Detect.Timeout = defaults.Detect.Timeout
	case "detect.parallelism":
		c.Detect.Parallelism = defaults.Detect.Parallelism
	case "elevation.poll_interval":
		c.Elevation.PollInterval = defaults.Elevation.PollInterval
	case "elevation.timeout":
		c.Elevation.Timeout = defaults.Elevation.Timeout
	case "log.level":
		c.Log.Level = defaults.Log.Level
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func cutPrefix(key, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like 10s, got %q", key, value)
	}
	return d, nil
}
