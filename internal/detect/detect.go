package detect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hudo/internal/installer"
	"hudo/internal/state"
)

// Mode selects how much work a detection does.
type Mode int

const (
	// Fast answers from the state registry alone.
	Fast Mode = iota
	// Thorough probes the filesystem, PATH and services and classifies what
	// it finds against the registry.
	Thorough
)

func (m Mode) String() string {
	if m == Thorough {
		return "thorough"
	}
	return "fast"
}

// State is the classification of a tool on this machine.
type State int

const (
	NotInstalled State = iota
	InstalledByHudo
	InstalledExternal
)

func (s State) String() string {
	switch s {
	case InstalledByHudo:
		return "installed"
	case InstalledExternal:
		return "external"
	default:
		return "not installed"
	}
}

// Result is the detection outcome for one tool.
type Result struct {
	ToolID     string
	State      State
	Version    string
	Path       string
	Configured bool
	// Stale is set when a record exists but nothing was found at its path.
	Stale bool
	// Record is the registry entry, when there is one.
	Record *state.Record
	// Err holds a probe failure; the classification is then NotInstalled or
	// whatever the registry alone can say.
	Err error
}

// Managed reports whether hudo owns the tool.
func (r Result) Managed() bool { return r.State == InstalledByHudo }

// Detector classifies tools against the state registry.
type Detector struct {
	Registry    *state.Registry
	Catalog     installer.Catalog
	Env         installer.Env
	Timeout     time.Duration
	Parallelism int
	Logger      zerolog.Logger
}

// Detect classifies a single tool.
func (d *Detector) Detect(ctx context.Context, id string, mode Mode) (Result, error) {
	inst, err := d.Catalog.Lookup(id)
	if err != nil {
		return Result{}, err
	}
	rec, hasRecord := d.Registry.Get(id)
	if mode == Fast {
		return fromRegistry(id, rec, hasRecord), nil
	}
	return d.probe(ctx, id, inst, rec, hasRecord), nil
}

// DetectAll classifies every id and waits for all of them. Results keep the
// order of ids. Thorough probes run concurrently up to Parallelism.
func (d *Detector) DetectAll(ctx context.Context, ids []string, mode Mode) ([]Result, error) {
	insts := make([]installer.Installer, len(ids))
	for i, id := range ids {
		inst, err := d.Catalog.Lookup(id)
		if err != nil {
			return nil, err
		}
		insts[i] = inst
	}

	results := make([]Result, len(ids))
	if mode == Fast {
		for i, id := range ids {
			rec, ok := d.Registry.Get(id)
			results[i] = fromRegistry(id, rec, ok)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := d.Parallelism
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			rec, ok := d.Registry.Get(id)
			results[i] = d.probe(gctx, id, insts[i], rec, ok)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func fromRegistry(id string, rec state.Record, ok bool) Result {
	if !ok {
		return Result{ToolID: id, State: NotInstalled}
	}
	return Result{
		ToolID:     id,
		State:      InstalledByHudo,
		Version:    rec.Version,
		Path:       rec.InstallPath,
		Configured: rec.Configured,
		Record:     &rec,
	}
}

func (d *Detector) probe(ctx context.Context, id string, inst installer.Installer, rec state.Record, hasRecord bool) Result {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	pres, err := inst.Detect(probeCtx, d.Env)
	d.Logger.Debug().Str("tool", id).Bool("found", pres.Found).Dur("took", time.Since(start)).Err(err).Msg("probe")

	res := Result{ToolID: id}
	if hasRecord {
		res.Record = &rec
	}
	if err != nil {
		res.Err = fmt.Errorf("probe %s: %w", id, err)
		return res
	}
	if !pres.Found {
		res.Stale = hasRecord
		return res
	}

	res.Version = pres.Version
	res.Path = pres.Path
	if hasRecord && within(rec.InstallPath, pres.Path) {
		res.State = InstalledByHudo
		res.Version = rec.Version
		res.Path = rec.InstallPath
		res.Configured = rec.Configured
		return res
	}
	// Found, but not where hudo put it.
	res.State = InstalledExternal
	res.Stale = hasRecord
	return res
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
