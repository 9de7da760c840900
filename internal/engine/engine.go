package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hudo/internal/config"
	"hudo/internal/detect"
	"hudo/internal/elevate"
	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/installer"
	"hudo/internal/paths"
	"hudo/internal/runner"
	"hudo/internal/state"
	"hudo/internal/version"
)

// Stage names a step of the install pipeline for progress reporting.
type Stage string

const (
	StageResolve   Stage = "resolving"
	StageDownload  Stage = "downloading"
	StageInstall   Stage = "installing"
	StageConfigure Stage = "configuring"
	StageRemove    Stage = "removing"
	StageDone      Stage = "done"
	StageSkipped   Stage = "skipped"
	StageFailed    Stage = "failed"
)

// Event reports pipeline progress for one tool.
type Event struct {
	Tool    string
	Stage   Stage
	Version string
	Done    int64
	Total   int64
	Err     error
}

// Engine drives installer pipelines against the state registry. One Engine
// serves one invocation; it runs tools one at a time.
type Engine struct {
	Config   config.Config
	Layout   paths.Layout
	Catalog  installer.Catalog
	Registry *state.Registry
	Resolver *version.Resolver
	Applier  *envapply.Applier
	Env      installer.Env
	Logger   zerolog.Logger

	// Observer, when set, receives progress events.
	Observer func(Event)

	now func() time.Time
}

// New wires an Engine for cfg using the real OS backends.
func New(cfg config.Config, logger zerolog.Logger) (*Engine, error) {
	layout, err := paths.Resolve(cfg.RootDir)
	if err != nil {
		return nil, err
	}
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	reg, err := state.Open(layout.StateFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open state registry: %w", err)
	}

	cmd := runner.CmdRunner{}
	elevator, query := elevate.Default(cmd)
	return &Engine{
		Config:   cfg,
		Layout:   layout,
		Catalog:  installer.Default(),
		Registry: reg,
		Resolver: version.NewResolver(logger),
		Applier:  envapply.NewApplier(layout.EnvDir, logger),
		Env: installer.Env{
			Layout:   layout,
			Platform: installer.CurrentPlatform(),
			Fetcher:  fetch.New(layout.CacheDir, logger),
			Runner:   cmd,
			Elevated: &elevate.Runner{
				Elevator:     elevator,
				Query:        query,
				PollInterval: cfg.Elevation.PollInterval,
				Timeout:      cfg.Elevation.Timeout,
				Logger:       logger,
			},
			Logger: logger,
		},
		Logger: logger,
	}, nil
}

// Detector returns a detector over the engine's registry and catalog.
func (e *Engine) Detector() *detect.Detector {
	return &detect.Detector{
		Registry:    e.Registry,
		Catalog:     e.Catalog,
		Env:         e.Env,
		Timeout:     e.Config.Detect.Timeout,
		Parallelism: e.Config.Detect.Parallelism,
		Logger:      e.Logger,
	}
}

func (e *Engine) emit(ev Event) {
	if e.Observer != nil {
		e.Observer(ev)
	}
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}
