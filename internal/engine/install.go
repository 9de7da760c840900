package engine

import (
	"context"
	"errors"
	"fmt"

	"hudo/internal/config"
	"hudo/internal/detect"
	"hudo/internal/installer"
	"hudo/internal/paths"
	"hudo/internal/state"
	"hudo/internal/version"
)

// Options adjusts install behaviour.
type Options struct {
	// Takeover installs a managed copy even when the tool is already present
	// from another source.
	Takeover bool
	// Force re-resolves and reinstalls a tool that is already managed, which
	// is how an unlocked tool moves to the latest release.
	Force bool
	// SkipConfigure stops after the record is written with configured=false.
	SkipConfigure bool
}

// Outcome is the per-tool result of a pipeline run.
type Outcome struct {
	Tool    string
	Kind    Kind
	Version string
	Path    string
	Err     error
}

func outcome(id string, err error) Outcome {
	return Outcome{Tool: id, Kind: Classify(err), Err: err}
}

// Install runs the full pipeline for one tool. An unchanged, configured
// install is a no-op with Kind KindAlreadyManaged and a nil error.
func (e *Engine) Install(ctx context.Context, id string, opts Options) (Outcome, error) {
	out := e.install(ctx, id, e.Config, opts)
	return out, pipelineErr(out)
}

// InstallMany installs ids plus their prerequisites, prerequisites first.
// A failure stops only the tools that depend on the failed one.
func (e *Engine) InstallMany(ctx context.Context, ids []string, opts Options) []Outcome {
	return e.batch(ctx, ids, func(string) config.Config { return e.Config }, opts, nil)
}

// Configure re-runs environment application and configuration for a tool
// that is recorded but not configured. Nothing is downloaded.
func (e *Engine) Configure(ctx context.Context, id string) (Outcome, error) {
	inst, err := e.Catalog.Lookup(id)
	if err != nil {
		out := outcome(id, err)
		return out, err
	}
	rec, ok := e.Registry.Get(id)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNotManaged, id)
		return outcome(id, err), err
	}
	out := e.configure(ctx, inst, rec)
	return out, pipelineErr(out)
}

func present(dir string) bool {
	ok, err := paths.DirExists(dir)
	return err == nil && ok
}

func pipelineErr(out Outcome) error {
	if out.Kind == KindAlreadyManaged {
		return nil
	}
	return out.Err
}

func (e *Engine) batch(ctx context.Context, ids []string, cfgFor func(id string) config.Config, opts Options, after func(id string, out *Outcome)) []Outcome {
	var outcomes []Outcome
	var known []string
	for _, id := range ids {
		if _, err := e.Catalog.Lookup(id); err != nil {
			outcomes = append(outcomes, outcome(id, err))
			continue
		}
		known = append(known, id)
	}
	order, err := e.Catalog.Order(known)
	if err != nil {
		return append(outcomes, outcome("", err))
	}

	failed := map[string]bool{}
	for _, id := range order {
		var out Outcome
		if dep := e.failedPrerequisite(id, failed); dep != "" {
			out = outcome(id, fmt.Errorf("%w: %s needs %s", ErrPrerequisiteFailed, id, dep))
			e.emit(Event{Tool: id, Stage: StageSkipped, Err: out.Err})
		} else {
			out = e.install(ctx, id, cfgFor(id), opts)
		}
		if after != nil {
			after(id, &out)
		}
		if out.Kind.Fatal() {
			failed[id] = true
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (e *Engine) failedPrerequisite(id string, failed map[string]bool) string {
	for _, dep := range e.Catalog[id].Describe().Prerequisites {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

func (e *Engine) install(ctx context.Context, id string, cfg config.Config, opts Options) Outcome {
	log := e.Logger.With().Str("tool", id).Logger()
	fail := func(err error) Outcome {
		log.Error().Err(err).Msg("install failed")
		e.emit(Event{Tool: id, Stage: StageFailed, Err: err})
		return outcome(id, err)
	}

	inst, err := e.Catalog.Lookup(id)
	if err != nil {
		return fail(err)
	}

	// A present managed install is left alone unless a lock asks for a
	// different version; upgrading to the latest release takes --force.
	rec, managed := e.Registry.Get(id)
	if managed && !opts.Force && present(rec.InstallPath) {
		if locked, ok := cfg.Lock(id); !ok || locked == rec.Version {
			log = log.With().Str("version", rec.Version).Logger()
			if rec.Configured || opts.SkipConfigure {
				log.Info().Msg("already installed")
				e.emit(Event{Tool: id, Stage: StageDone, Version: rec.Version})
				return Outcome{Tool: id, Kind: KindAlreadyManaged, Version: rec.Version, Path: rec.InstallPath, Err: fmt.Errorf("%w: %s %s", ErrAlreadyManaged, id, rec.Version)}
			}
			log.Info().Msg("recorded but not configured; repairing")
			return e.configure(ctx, inst, rec)
		}
	}

	e.emit(Event{Tool: id, Stage: StageResolve})
	res, err := e.Resolver.Resolve(ctx, inst.VersionTarget(), cfg)
	if err != nil {
		return fail(err)
	}
	if managed && res.Origin == version.OriginFallback && res.Remote != nil && res.Version != rec.Version {
		// The static default is not a newer release; reinstall what is recorded.
		log.Warn().Err(res.Remote).Str("recorded", rec.Version).Str("fallback", res.Version).Msg("keeping recorded version")
		res.Version = rec.Version
	}
	log = log.With().Str("version", res.Version).Str("origin", string(res.Origin)).Logger()

	if !managed && !opts.Takeover {
		found, err := e.Detector().Detect(ctx, id, detect.Thorough)
		if err != nil {
			return fail(err)
		}
		if found.State == detect.InstalledExternal {
			err := fmt.Errorf("%w: %s %s at %s", ErrExternallyManaged, id, found.Version, found.Path)
			log.Warn().Err(err).Msg("skipping")
			e.emit(Event{Tool: id, Stage: StageSkipped, Version: found.Version, Err: err})
			return Outcome{Tool: id, Kind: KindExternal, Version: found.Version, Path: found.Path, Err: err}
		}
	}

	dl, err := inst.ResolveDownload(installer.Request{Config: cfg, Version: res.Version, Platform: e.Env.Platform})
	if err != nil {
		return fail(err)
	}

	e.emit(Event{Tool: id, Stage: StageDownload, Version: res.Version})
	if e.Env.Fetcher != nil {
		e.Env.Fetcher.Progress = func(done, total int64) {
			e.emit(Event{Tool: id, Stage: StageDownload, Version: res.Version, Done: done, Total: total})
		}
		defer func() { e.Env.Fetcher.Progress = nil }()
	}
	installed, err := inst.Install(ctx, e.Env, dl)
	if err != nil {
		return fail(err)
	}
	e.emit(Event{Tool: id, Stage: StageInstall, Version: installed.Version})

	if managed && rec.InstallPath != installed.Path {
		if err := e.Applier.Revert(inst.EnvActions(installer.Outcome{Path: rec.InstallPath, Version: rec.Version})); err != nil {
			log.Warn().Err(err).Msg("could not revert environment of previous install")
		}
	}

	// The record goes down before configure so an interrupted or failed
	// configure leaves a repairable configured=false entry.
	next := state.Record{
		ToolID:      id,
		Version:     installed.Version,
		InstallPath: installed.Path,
		Managed:     true,
		InstalledAt: e.clock().UTC(),
	}
	if err := e.Registry.Put(next); err != nil {
		return fail(err)
	}
	log.Info().Str("path", installed.Path).Msg("recorded")

	if opts.SkipConfigure {
		if err := e.Applier.Apply(inst.EnvActions(installed)); err != nil {
			return fail(err)
		}
		e.emit(Event{Tool: id, Stage: StageDone, Version: installed.Version})
		return Outcome{Tool: id, Kind: KindOK, Version: installed.Version, Path: installed.Path}
	}
	return e.configure(ctx, inst, next)
}

// configure applies env actions and the tool's configure step for a recorded
// install, then marks it configured.
func (e *Engine) configure(ctx context.Context, inst installer.Installer, rec state.Record) Outcome {
	id := rec.ToolID
	log := e.Logger.With().Str("tool", id).Str("version", rec.Version).Logger()
	fail := func(err error) Outcome {
		log.Error().Err(err).Msg("configure failed")
		e.emit(Event{Tool: id, Stage: StageFailed, Version: rec.Version, Err: err})
		out := outcome(id, err)
		out.Version = rec.Version
		out.Path = rec.InstallPath
		return out
	}

	installed := installer.Outcome{Path: rec.InstallPath, Version: rec.Version}
	if err := e.Applier.Apply(inst.EnvActions(installed)); err != nil {
		return fail(fmt.Errorf("%w: %s: apply environment: %w", installer.ErrConfigureFailed, id, err))
	}

	e.emit(Event{Tool: id, Stage: StageConfigure, Version: rec.Version})
	if err := inst.Configure(ctx, e.Env, installed); err != nil {
		if !errors.Is(err, installer.ErrConfigureFailed) {
			err = fmt.Errorf("%w: %s: %w", installer.ErrConfigureFailed, id, err)
		}
		return fail(err)
	}
	if err := e.Registry.MarkConfigured(id); err != nil {
		return fail(err)
	}
	log.Info().Msg("configured")
	e.emit(Event{Tool: id, Stage: StageDone, Version: rec.Version})
	return Outcome{Tool: id, Kind: KindOK, Version: rec.Version, Path: rec.InstallPath}
}
