package installer

import (
	"context"
	"fmt"
	"strings"

	"hudo/internal/fetch"
	"hudo/internal/runner"
)

// gitSettings maps portable setting names to git config keys.
var gitSettings = map[string]string{
	"user_name":  "user.name",
	"user_email": "user.email",
}

type gitInstaller struct {
	*recipe
}

func configureGit(ctx context.Context, env Env, o Outcome) error {
	git, err := gitBinary(env, o.Path)
	if err != nil {
		return err
	}
	defaults := [][2]string{{"init.defaultBranch", "main"}}
	if env.Platform.OS == "windows" {
		defaults = append(defaults, [2]string{"core.longpaths", "true"}, [2]string{"core.autocrlf", "true"})
	}
	for _, kv := range defaults {
		if current, _ := gitConfigGet(ctx, env, git, kv[0]); current != "" {
			continue
		}
		if err := gitConfigSet(ctx, env, git, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func (g *gitInstaller) ExportConfig(ctx context.Context, env Env) (map[string]string, error) {
	git, err := gitBinary(env, g.installDir(env))
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for name, key := range gitSettings {
		if v, _ := gitConfigGet(ctx, env, git, key); v != "" {
			out[name] = v
		}
	}
	return out, nil
}

func (g *gitInstaller) ImportConfig(ctx context.Context, env Env, settings map[string]string) error {
	git, err := gitBinary(env, g.installDir(env))
	if err != nil {
		return err
	}
	for name, value := range settings {
		key, ok := gitSettings[name]
		if !ok {
			env.Logger.Debug().Str("setting", name).Msg("ignoring unknown git setting")
			continue
		}
		if err := gitConfigSet(ctx, env, git, key, value); err != nil {
			return err
		}
	}
	return nil
}

// gitBinary prefers the hudo-managed git and falls back to PATH.
func gitBinary(env Env, dir string) (string, error) {
	if bin, err := fetch.Locate(dir, exeGlob("cmd/git")); err == nil {
		return bin, nil
	}
	bin, err := env.lookPath("git")
	if err != nil {
		return "", fmt.Errorf("git not found: %w", err)
	}
	return bin, nil
}

func gitConfigGet(ctx context.Context, env Env, git, key string) (string, error) {
	res, err := env.Runner.Run(ctx, git, []string{"config", "--global", key}, runner.RunOptions{})
	if err != nil {
		// git exits 1 when the key is unset.
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

func gitConfigSet(ctx context.Context, env Env, git, key, value string) error {
	res, err := env.Runner.Run(ctx, git, []string{"config", "--global", key, value}, runner.RunOptions{})
	if err != nil {
		return fmt.Errorf("git config --global %s: %w: %s", key, err, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}
