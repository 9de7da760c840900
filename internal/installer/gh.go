package installer

import (
	"context"
	"fmt"
	"strings"

	"hudo/internal/fetch"
	"hudo/internal/runner"
)

// ghSettings are the gh config keys safe to carry between machines.
// Authentication lives in hosts.yml and is never read.
var ghSettings = []string{"git_protocol", "editor", "prompt"}

type ghInstaller struct {
	*recipe
}

func (g *ghInstaller) ghBinary(env Env) (string, error) {
	if bin, err := fetch.Locate(g.installDir(env), exeGlob(g.binary)); err == nil {
		return bin, nil
	}
	bin, err := env.lookPath("gh")
	if err != nil {
		return "", fmt.Errorf("gh not found: %w", err)
	}
	return bin, nil
}

func (g *ghInstaller) ExportConfig(ctx context.Context, env Env) (map[string]string, error) {
	gh, err := g.ghBinary(env)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, key := range ghSettings {
		res, err := env.Runner.Run(ctx, gh, []string{"config", "get", key}, runner.RunOptions{})
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(res.Stdout)); v != "" {
			out[key] = v
		}
	}
	return out, nil
}

func (g *ghInstaller) ImportConfig(ctx context.Context, env Env, settings map[string]string) error {
	gh, err := g.ghBinary(env)
	if err != nil {
		return err
	}
	for _, key := range ghSettings {
		value, ok := settings[key]
		if !ok {
			continue
		}
		res, err := env.Runner.Run(ctx, gh, []string{"config", "set", key, value}, runner.RunOptions{})
		if err != nil {
			return fmt.Errorf("gh config set %s: %w: %s", key, err, strings.TrimSpace(string(res.Stderr)))
		}
	}
	return nil
}
