package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hudo/internal/detect"
	"hudo/internal/installer"
)

// UninstallOptions adjusts uninstall behaviour.
type UninstallOptions struct {
	// Force drops the record even when a removal step fails.
	Force bool
}

// Uninstall removes a hudo-managed tool. The record is dropped only after
// service teardown, environment reversal and file removal all succeed, or
// when Force is set. Tools hudo does not own are never touched.
func (e *Engine) Uninstall(ctx context.Context, id string, opts UninstallOptions) (Outcome, error) {
	log := e.Logger.With().Str("tool", id).Logger()
	fail := func(err error) (Outcome, error) {
		log.Error().Err(err).Msg("uninstall failed")
		e.emit(Event{Tool: id, Stage: StageFailed, Err: err})
		return outcome(id, err), err
	}

	inst, err := e.Catalog.Lookup(id)
	if err != nil {
		return fail(err)
	}
	rec, ok := e.Registry.Get(id)
	if !ok {
		found, derr := e.Detector().Detect(ctx, id, detect.Thorough)
		if derr == nil && found.State == detect.InstalledExternal {
			err := fmt.Errorf("%w: %s at %s is not hudo's to remove", ErrExternallyManaged, id, found.Path)
			e.emit(Event{Tool: id, Stage: StageSkipped, Err: err})
			return Outcome{Tool: id, Kind: KindExternal, Version: found.Version, Path: found.Path, Err: err}, err
		}
		return fail(fmt.Errorf("%w: %s", ErrNotManaged, id))
	}

	for _, dep := range e.Catalog.Dependents(id) {
		if _, managed := e.Registry.Get(dep); managed {
			log.Warn().Str("dependent", dep).Msg("removing a prerequisite of a managed tool")
		}
	}

	e.emit(Event{Tool: id, Stage: StageRemove, Version: rec.Version})
	installed := installer.Outcome{Path: rec.InstallPath, Version: rec.Version}
	steps := []struct {
		name string
		run  func() error
	}{
		{"stop services", func() error {
			if pre, ok := inst.(installer.PreUninstaller); ok {
				return pre.PreUninstall(ctx, e.Env, installed)
			}
			return nil
		}},
		{"revert environment", func() error {
			return e.Applier.Revert(inst.EnvActions(installed))
		}},
		{"remove files", func() error {
			return e.removeInstallDir(rec.InstallPath)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			err = fmt.Errorf("%s: %s: %w", id, step.name, err)
			if !opts.Force {
				return fail(err)
			}
			log.Warn().Err(err).Msg("continuing because of --force")
		}
	}

	if err := e.Registry.Remove(id); err != nil {
		return fail(err)
	}
	log.Info().Str("version", rec.Version).Msg("uninstalled")
	e.emit(Event{Tool: id, Stage: StageDone, Version: rec.Version})
	return Outcome{Tool: id, Kind: KindOK, Version: rec.Version, Path: rec.InstallPath}, nil
}

// removeInstallDir deletes dir, refusing anything outside the hudo root.
func (e *Engine) removeInstallDir(dir string) error {
	root := filepath.Clean(e.Layout.Root)
	rel, err := filepath.Rel(root, filepath.Clean(dir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to delete %s: outside %s", dir, root)
	}
	return os.RemoveAll(dir)
}
