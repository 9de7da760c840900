package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hudo/internal/elevate"
	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/runner"
	"hudo/internal/version"
)

type pgInstaller struct {
	*recipe
}

func newPostgres() *pgInstaller {
	pg := &pgInstaller{}
	pg.recipe = &recipe{
		desc: Descriptor{
			ID:          "pgsql",
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL server binaries with a Windows service",
			Category:    CategoryDatabase,
			Service:     PGService,
		},
		target: version.Target{ID: "pgsql", Source: version.PostgresSource{}, Fallback: PGVersion},
		official: func(Platform) string {
			return "https://get.enterprisedb.com/postgresql"
		},
		locate: func(v string, p Platform) (artifact, error) {
			if p.OS != "windows" || p.Arch != "amd64" {
				return artifact{}, unsupported("pgsql", p)
			}
			return artifact{Suffix: fmt.Sprintf("postgresql-%s-1-windows-x64-binaries.zip", v)}, nil
		},
		binary: "bin/pg_ctl",
		strip:  true,
		env: func(o Outcome) []envapply.Action {
			return []envapply.Action{
				envapply.PrependPath(filepath.Join(o.Path, "bin")),
				envapply.SetVariable("PGDATA", filepath.Join(o.Path, "data")),
			}
		},
		configure: configurePostgres,
	}
	return pg
}

// configurePostgres initialises the cluster, registers the service and
// starts it. Each step checks current state first so a retry after a
// partial failure only does what is left.
func configurePostgres(ctx context.Context, env Env, o Outcome) error {
	if env.Elevated == nil {
		return errors.New("service registration needs an elevated runner")
	}
	data := filepath.Join(o.Path, "data")
	if entries, err := os.ReadDir(data); err != nil || len(entries) == 0 {
		initdb, err := fetch.Locate(o.Path, exeGlob("bin/initdb"))
		if err != nil {
			return err
		}
		res, err := env.Runner.Run(ctx, initdb, []string{"-D", data, "-U", "postgres", "-A", "trust", "-E", "UTF8"}, runner.RunOptions{})
		if err != nil {
			return fmt.Errorf("initdb: %w: %s", err, strings.TrimSpace(string(res.Stderr)))
		}
	}

	pgCtl, err := fetch.Locate(o.Path, exeGlob("bin/pg_ctl"))
	if err != nil {
		return err
	}
	state, err := env.Elevated.Query.State(ctx, PGService)
	if err != nil {
		state = elevate.StateUnknown
	}
	if state == elevate.StateRunning {
		return nil
	}
	if state == elevate.StateAbsent || state == elevate.StateUnknown {
		err := env.Elevated.Run(ctx, elevate.Action{
			Description: "register PostgreSQL service",
			Command:     pgCtl,
			Args:        []string{"register", "-N", PGService, "-D", data},
			Service:     PGService,
			Target:      elevate.StatePresent,
		})
		if err != nil {
			return err
		}
	}
	return env.Elevated.Run(ctx, elevate.Action{
		Description: "start PostgreSQL service",
		Command:     "net",
		Args:        []string{"start", PGService},
		Service:     PGService,
		Target:      elevate.StateRunning,
	})
}

// PreUninstall stops and unregisters the service so the install directory
// can be removed.
func (p *pgInstaller) PreUninstall(ctx context.Context, env Env, o Outcome) error {
	if env.Elevated == nil {
		return errors.New("service removal needs an elevated runner")
	}
	state, err := env.Elevated.Query.State(ctx, PGService)
	if err == nil && state == elevate.StateAbsent {
		return nil
	}
	if state != elevate.StateStopped {
		err := env.Elevated.Run(ctx, elevate.Action{
			Description: "stop PostgreSQL service",
			Command:     "net",
			Args:        []string{"stop", PGService},
			Service:     PGService,
			Target:      elevate.StateStopped,
		})
		if err != nil {
			return err
		}
	}
	pgCtl, err := fetch.Locate(o.Path, exeGlob("bin/pg_ctl"))
	if err != nil {
		pgCtl = "pg_ctl"
	}
	return env.Elevated.Run(ctx, elevate.Action{
		Description: "unregister PostgreSQL service",
		Command:     pgCtl,
		Args:        []string{"unregister", "-N", PGService},
		Service:     PGService,
		Target:      elevate.StateAbsent,
	})
}

// Detect also reports a registered service when no binaries are found, so a
// PostgreSQL installed by other means is never mistaken for absent.
func (p *pgInstaller) Detect(ctx context.Context, env Env) (Presence, error) {
	pres, err := p.recipe.Detect(ctx, env)
	if err != nil || pres.Found || env.Elevated == nil || env.Elevated.Query == nil {
		return pres, err
	}
	state, err := env.Elevated.Query.State(ctx, PGService)
	if err != nil || state == elevate.StateAbsent || state == elevate.StateUnknown {
		return Presence{}, nil
	}
	return Presence{Found: true, Path: "service:" + PGService}, nil
}
