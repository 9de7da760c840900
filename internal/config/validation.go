package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the configuration against the set of known tool ids and
// returns structured findings. It never modifies c.
func (c Config) Validate(knownTools []string) []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateRoot()...)
	results = append(results, c.validateToolKeys("versions", c.Versions, knownTools)...)
	results = append(results, c.validateToolKeys("mirrors", c.Mirrors, knownTools)...)
	results = append(results, c.validateMirrors()...)
	results = append(results, c.validateLogLevel()...)
	return results
}

// HasErrors reports whether any result has level "error".
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateRoot() []ValidationResult {
	if strings.TrimSpace(c.RootDir) == "" {
		return []ValidationResult{{Level: "error", Message: "root_dir is empty"}}
	}
	if !filepath.IsAbs(c.RootDir) {
		return []ValidationResult{{
			Level:   "warning",
			Message: fmt.Sprintf("root_dir %q is relative; it will resolve against the working directory", c.RootDir),
		}}
	}
	return nil
}

func (c Config) validateToolKeys(section string, values map[string]string, knownTools []string) []ValidationResult {
	known := make(map[string]struct{}, len(knownTools))
	for _, id := range knownTools {
		known[id] = struct{}{}
	}

	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results []ValidationResult
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s.%s does not name a known tool", section, id),
			})
		}
	}
	return results
}

func (c Config) validateMirrors() []ValidationResult {
	ids := make([]string, 0, len(c.Mirrors))
	for id := range c.Mirrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results []ValidationResult
	for _, id := range ids {
		raw := strings.TrimSpace(c.Mirrors[id])
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("mirrors.%s must be an http(s) URL, got %q", id, raw),
			})
		}
	}
	return results
}

func (c Config) validateLogLevel() []ValidationResult {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return []ValidationResult{{
			Level:   "warning",
			Message: fmt.Sprintf("log.level %q is not recognised; falling back to info", c.Log.Level),
		}}
	}
	return nil
}
