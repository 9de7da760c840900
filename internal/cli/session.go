package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hudo/internal/config"
	"hudo/internal/engine"
	"hudo/internal/installer"
	"hudo/internal/logx"
	"hudo/internal/paths"
)

// session is the per-invocation wiring shared by commands that touch tools.
type session struct {
	cfg     config.Config
	cfgPath string
	engine  *engine.Engine
	logger  zerolog.Logger
	closer  io.Closer
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfgPath, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	layout, err := paths.Resolve(cfg.RootDir)
	if err != nil {
		return nil, err
	}
	logger, closer, err := logx.New(layout, logx.Options{
		Level:   cfg.Log.Level,
		Verbose: verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("command", cmd.Name()).Logger()

	for _, r := range cfg.Validate(installer.KnownTools()) {
		logger.Warn().Str("level", r.Level).Msg(r.Message)
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &session{cfg: cfg, cfgPath: cfgPath, engine: eng, logger: logger, closer: closer}, nil
}

func (s *session) Close() {
	if s == nil || s.closer == nil {
		return
	}
	_ = s.closer.Close()
}

func loadConfig() (string, config.Config, error) {
	cfgPath, err := paths.ConfigFile()
	if err != nil {
		return "", config.Config{}, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("load %s: %w", cfgPath, err)
	}
	return cfgPath, cfg, nil
}
