package envapply

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
)

// Snapshot is the user-level environment as a backend sees it.
type Snapshot struct {
	Path []string
	Vars map[string]string
}

// Backend persists a Snapshot somewhere the user's shells will pick it up.
type Backend interface {
	Name() string
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// Applier turns actions into persisted environment changes on every backend.
type Applier struct {
	Backends []Backend
	// FoldCase compares PATH entries case-insensitively.
	FoldCase bool
	Logger   zerolog.Logger
}

// Apply merges actions into each backend. Already-present entries are left
// alone, so reapplying is harmless.
func (a *Applier) Apply(actions []Action) error {
	return a.each(func(snap *Snapshot) bool {
		changed := false
		// Walk in reverse so the first action ends up first on PATH.
		for i := len(actions) - 1; i >= 0; i-- {
			act := actions[i]
			switch act.Kind {
			case KindPrependPath:
				if a.indexOf(snap.Path, act.Dir) >= 0 {
					continue
				}
				snap.Path = append([]string{act.Dir}, snap.Path...)
				changed = true
			case KindSetVariable:
				if cur, ok := snap.Vars[act.Name]; ok && cur == act.Value {
					continue
				}
				snap.Vars[act.Name] = act.Value
				changed = true
			}
		}
		return changed
	})
}

// Revert removes what Apply added for actions. Variables are only deleted
// while they still hold the value hudo set.
func (a *Applier) Revert(actions []Action) error {
	return a.each(func(snap *Snapshot) bool {
		changed := false
		for _, act := range actions {
			switch act.Kind {
			case KindPrependPath:
				for {
					idx := a.indexOf(snap.Path, act.Dir)
					if idx < 0 {
						break
					}
					snap.Path = append(snap.Path[:idx], snap.Path[idx+1:]...)
					changed = true
				}
			case KindSetVariable:
				cur, ok := snap.Vars[act.Name]
				if !ok {
					continue
				}
				if cur != act.Value {
					a.Logger.Warn().Str("name", act.Name).Msg("variable changed since install; leaving it")
					continue
				}
				delete(snap.Vars, act.Name)
				changed = true
			}
		}
		return changed
	})
}

func (a *Applier) each(mutate func(*Snapshot) bool) error {
	var errs []error
	for _, b := range a.Backends {
		snap, err := b.Load()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: load: %w", b.Name(), err))
			continue
		}
		if snap.Vars == nil {
			snap.Vars = map[string]string{}
		}
		if !mutate(&snap) {
			continue
		}
		if err := b.Save(snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: save: %w", b.Name(), err))
			continue
		}
		a.Logger.Debug().Str("backend", b.Name()).Msg("environment updated")
	}
	return errors.Join(errs...)
}

func (a *Applier) indexOf(entries []string, dir string) int {
	want := a.normalize(dir)
	for i, entry := range entries {
		if a.normalize(entry) == want {
			return i
		}
	}
	return -1
}

func (a *Applier) normalize(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}
	dir = filepath.Clean(dir)
	if a.FoldCase {
		dir = cases.Fold().String(dir)
	}
	return dir
}
