package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FormatVersion is written into every exported profile.
const FormatVersion = "1"

// Meta is the [hudo] header table.
type Meta struct {
	Version    string    `toml:"version"`
	ExportedAt time.Time `toml:"exported_at"`
}

// Settings carries machine-independent configuration applied on import.
type Settings struct {
	Mirrors  map[string]string `toml:"mirrors,omitempty"`
	Versions map[string]string `toml:"versions,omitempty"`
}

// Profile is a portable snapshot of the managed tool set.
type Profile struct {
	Hudo       Meta                         `toml:"hudo"`
	Settings   Settings                     `toml:"settings"`
	Tools      map[string]string            `toml:"tools"`
	ToolConfig map[string]map[string]string `toml:"tool_config,omitempty"`
}

// New returns an empty profile stamped with now.
func New(now time.Time) Profile {
	return Profile{
		Hudo:       Meta{Version: FormatVersion, ExportedAt: now.UTC().Truncate(time.Second)},
		Tools:      map[string]string{},
		ToolConfig: map[string]map[string]string{},
	}
}

// IDs returns the profile's tool ids sorted.
func (p Profile) IDs() []string {
	ids := make([]string, 0, len(p.Tools))
	for id := range p.Tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetToolConfig stores settings for id after removing secret-bearing keys.
// Empty maps are dropped.
func (p *Profile) SetToolConfig(id string, settings map[string]string) {
	clean := Scrub(settings)
	if len(clean) == 0 {
		return
	}
	if p.ToolConfig == nil {
		p.ToolConfig = map[string]map[string]string{}
	}
	p.ToolConfig[id] = clean
}

// Decode parses a TOML profile. Secret-bearing tool settings are removed.
func Decode(data []byte) (Profile, error) {
	var p Profile
	meta, err := toml.Decode(string(data), &p)
	if err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if !meta.IsDefined("tools") {
		return Profile{}, errors.New("decode profile: missing [tools] table")
	}
	if p.Tools == nil {
		p.Tools = map[string]string{}
	}
	for id, v := range p.Tools {
		v = strings.TrimSpace(v)
		if v == "" {
			return Profile{}, fmt.Errorf("decode profile: tool %s has no version", id)
		}
		p.Tools[id] = v
	}
	for id, settings := range p.ToolConfig {
		clean := Scrub(settings)
		if len(clean) == 0 {
			delete(p.ToolConfig, id)
			continue
		}
		p.ToolConfig[id] = clean
	}
	return p, nil
}

// Load reads and decodes the profile at path.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Decode(data)
}

// Encode renders the profile as TOML.
func (p Profile) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the profile to path via a temp file and rename.
func (p Profile) Save(path string) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare profile dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "profile-*.toml")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write profile temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}
