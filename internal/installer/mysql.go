package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hudo/internal/fetch"
	"hudo/internal/runner"
)

// configureMySQL initialises an empty data directory with a passwordless
// root account. An already-initialised directory is left alone.
func configureMySQL(ctx context.Context, env Env, o Outcome) error {
	data := filepath.Join(o.Path, "data")
	if entries, err := os.ReadDir(data); err == nil && len(entries) > 0 {
		return nil
	}
	mysqld, err := fetch.Locate(o.Path, exeGlob("bin/mysqld"))
	if err != nil {
		return err
	}
	res, err := env.Runner.Run(ctx, mysqld, []string{"--initialize-insecure", "--basedir=" + o.Path, "--datadir=" + data}, runner.RunOptions{})
	if err != nil {
		return fmt.Errorf("mysqld --initialize-insecure: %w: %s", err, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}
