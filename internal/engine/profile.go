package engine

import (
	"context"
	"fmt"
	"sort"

	"hudo/internal/config"
	"hudo/internal/detect"
	"hudo/internal/installer"
	"hudo/internal/profile"
)

// Export snapshots every hudo-managed tool and the portable settings of
// tools that support them. Settings are read from external installs too,
// since identity lives in the user's config rather than the install.
func (e *Engine) Export(ctx context.Context) (profile.Profile, error) {
	p := profile.New(e.clock())
	for _, rec := range e.Registry.List() {
		p.Tools[rec.ToolID] = rec.Version
	}
	if len(e.Config.Mirrors) > 0 {
		p.Settings.Mirrors = make(map[string]string, len(e.Config.Mirrors))
		for id, base := range e.Config.Mirrors {
			p.Settings.Mirrors[id] = base
		}
	}
	for id := range e.Config.Versions {
		if v, ok := e.Config.Lock(id); ok {
			if p.Settings.Versions == nil {
				p.Settings.Versions = map[string]string{}
			}
			p.Settings.Versions[id] = v
		}
	}

	for _, id := range e.Catalog.IDs() {
		porter, ok := e.Catalog[id].(installer.ConfigPorter)
		if !ok {
			continue
		}
		if _, managed := p.Tools[id]; !managed {
			found, err := e.Detector().Detect(ctx, id, detect.Thorough)
			if err != nil || found.State == detect.NotInstalled {
				continue
			}
		}
		settings, err := porter.ExportConfig(ctx, e.Env)
		if err != nil {
			e.Logger.Warn().Err(err).Str("tool", id).Msg("could not read tool settings")
			continue
		}
		p.SetToolConfig(id, settings)
	}
	return p, nil
}

// Import installs every tool in p at the profile's version, which overrides
// any configured lock for that run. Prerequisites install first whatever
// their position in the profile. Profile mirrors and version locks fill in
// what the configuration does not set, so a prerequisite the profile does not
// list still installs at the exporting machine's locked version. Tool settings are applied once the tool is
// present.
func (e *Engine) Import(ctx context.Context, p profile.Profile, opts Options) []Outcome {
	base := e.Config.WithMirrors(p.Settings.Mirrors).WithVersions(p.Settings.Versions)
	cfgFor := func(id string) config.Config {
		if v, ok := p.Tools[id]; ok {
			return base.WithLock(id, v)
		}
		return base
	}
	after := func(id string, out *Outcome) {
		settings, ok := p.ToolConfig[id]
		if !ok || out.Kind.Fatal() {
			return
		}
		porter, ok := e.Catalog[id].(installer.ConfigPorter)
		if !ok {
			return
		}
		if err := porter.ImportConfig(ctx, e.Env, profile.Scrub(settings)); err != nil {
			err = fmt.Errorf("%w: %s: import settings: %w", installer.ErrConfigureFailed, id, err)
			e.Logger.Error().Err(err).Str("tool", id).Msg("import settings failed")
			*out = Outcome{Tool: id, Kind: Classify(err), Version: out.Version, Path: out.Path, Err: err}
		}
	}
	outcomes := e.batch(ctx, p.IDs(), cfgFor, opts, after)

	// Settings for tools the profile does not install apply to whatever
	// copy is already present.
	for _, id := range sortedKeys(p.ToolConfig) {
		if _, listed := p.Tools[id]; listed {
			continue
		}
		if _, known := e.Catalog[id]; !known {
			continue
		}
		found, err := e.Detector().Detect(ctx, id, detect.Thorough)
		if err != nil || found.State == detect.NotInstalled {
			e.Logger.Info().Str("tool", id).Msg("settings skipped; tool not present")
			continue
		}
		out := Outcome{Tool: id, Kind: KindOK, Version: found.Version, Path: found.Path}
		after(id, &out)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
