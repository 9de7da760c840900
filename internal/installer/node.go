package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/runner"
)

func fnmDir(o Outcome) string {
	return filepath.Join(o.Path, "node")
}

func nodeEnv(o Outcome) []envapply.Action {
	return []envapply.Action{
		envapply.SetVariable("FNM_DIR", fnmDir(o)),
		envapply.PrependPath(o.Path),
	}
}

// configureNode installs the current LTS Node.js through fnm and makes it
// the default. Rerunning is cheap: fnm skips versions it already has.
func configureNode(ctx context.Context, env Env, o Outcome) error {
	fnm, err := fetch.Locate(o.Path, exeGlob("fnm"))
	if err != nil {
		return err
	}
	dir := fnmDir(o)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	opts := runner.RunOptions{Env: []string{"FNM_DIR=" + dir}}
	for _, args := range [][]string{{"install", "--lts"}, {"default", "lts-latest"}} {
		res, err := env.Runner.Run(ctx, fnm, args, opts)
		if err != nil {
			return fmt.Errorf("fnm %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(res.Stderr)))
		}
	}
	return nil
}
