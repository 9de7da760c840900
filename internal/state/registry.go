package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnmanagedRecord is returned when a caller tries to persist a record that
// hudo does not own.
var ErrUnmanagedRecord = errors.New("state: refusing to record a tool hudo does not manage")

const fileVersion = 1

// Record is the persisted ownership record for one tool.
type Record struct {
	ToolID      string    `json:"tool_id"`
	Version     string    `json:"version"`
	InstallPath string    `json:"install_path"`
	Managed     bool      `json:"managed"`
	Configured  bool      `json:"configured"`
	InstalledAt time.Time `json:"installed_at"`
}

type document struct {
	Version int               `json:"version"`
	Tools   map[string]Record `json:"tools"`
}

// Registry is the durable map of tool id to Record. Every mutation rewrites
// the whole file through a temp file and rename.
type Registry struct {
	mu     sync.Mutex
	path   string
	tools  map[string]Record
	logger zerolog.Logger
	now    func() time.Time
}

// Open loads the registry at path. A missing file yields an empty registry.
// A corrupt file is moved aside and an empty registry is returned.
func Open(path string, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		path:   path,
		tools:  map[string]Record{},
		logger: logger,
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, fmt.Errorf("state file %s is corrupt and could not be moved aside: %w", path, renameErr)
		}
		logger.Warn().Err(err).Str("backup", backup).Msg("state file corrupt; starting empty")
		return r, nil
	}
	for id, rec := range doc.Tools {
		if rec.ToolID == "" {
			rec.ToolID = id
		}
		r.tools[id] = rec
	}
	return r, nil
}

// Path returns the backing file.
func (r *Registry) Path() string { return r.path }

// Get returns the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tools[id]
	return rec, ok
}

// List returns all records sorted by tool id.
func (r *Registry) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.tools))
	for _, rec := range r.tools {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out
}

// Put stores rec, replacing any previous record for the same tool, and
// persists the registry before returning.
func (r *Registry) Put(rec Record) error {
	if !rec.Managed {
		return fmt.Errorf("%w: %s", ErrUnmanagedRecord, rec.ToolID)
	}
	if rec.ToolID == "" {
		return fmt.Errorf("state: record has no tool id")
	}
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.tools[rec.ToolID]
	r.tools[rec.ToolID] = rec
	if err := r.saveLocked(); err != nil {
		if had {
			r.tools[rec.ToolID] = prev
		} else {
			delete(r.tools, rec.ToolID)
		}
		return err
	}
	r.logger.Debug().Str("tool", rec.ToolID).Str("version", rec.Version).Bool("configured", rec.Configured).Msg("state record written")
	return nil
}

// MarkConfigured flips configured=true on an existing record.
func (r *Registry) MarkConfigured(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tools[id]
	if !ok {
		return fmt.Errorf("state: no record for %s", id)
	}
	if rec.Configured {
		return nil
	}
	rec.Configured = true
	r.tools[id] = rec
	if err := r.saveLocked(); err != nil {
		rec.Configured = false
		r.tools[id] = rec
		return err
	}
	return nil
}

// Remove deletes the record for id. Removing an absent record is a no-op.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.tools[id]
	if !ok {
		return nil
	}
	delete(r.tools, id)
	if err := r.saveLocked(); err != nil {
		r.tools[id] = prev
		return err
	}
	return nil
}

func (r *Registry) saveLocked() error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare state dir: %w", err)
	}

	data, err := json.MarshalIndent(document{Version: fileVersion, Tools: r.tools}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
