package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/runner"
	"hudo/internal/version"
)

// condaInstaller runs the Miniconda installer silently for the current user
// only. Python is not registered and PATH gets condabin alone, so conda's
// Python never shadows another one.
type condaInstaller struct {
	*recipe
}

func newMiniconda() *condaInstaller {
	c := &condaInstaller{}
	c.recipe = &recipe{
		desc:   Descriptor{ID: "miniconda", DisplayName: "Miniconda", Description: "Minimal conda installer", Category: CategoryTool},
		target: version.Target{ID: "miniconda", Fallback: MinicondaVersion},
		official: func(Platform) string {
			return "https://repo.anaconda.com/miniconda"
		},
		locate: func(v string, p Platform) (artifact, error) {
			var plat string
			switch {
			case p.OS == "windows" && p.Arch == "amd64":
				plat = "Windows-x86_64.exe"
			case p.OS == "linux" && p.Arch == "amd64":
				plat = "Linux-x86_64.sh"
			case p.OS == "linux" && p.Arch == "arm64":
				plat = "Linux-aarch64.sh"
			case p.OS == "darwin" && p.Arch == "arm64":
				plat = "MacOSX-arm64.sh"
			case p.OS == "darwin" && p.Arch == "amd64":
				plat = "MacOSX-x86_64.sh"
			default:
				return artifact{}, unsupported("miniconda", p)
			}
			return artifact{Suffix: fmt.Sprintf("Miniconda3-%s-%s", v, plat), Format: fetch.FormatNone}, nil
		},
		binary: "condabin/conda",
		env: func(o Outcome) []envapply.Action {
			return []envapply.Action{envapply.PrependPath(filepath.Join(o.Path, "condabin"))}
		},
	}
	return c
}

func (c *condaInstaller) Install(ctx context.Context, env Env, d Download) (Outcome, error) {
	art, err := env.Fetcher.Fetch(ctx, d.Spec())
	if err != nil {
		return Outcome{}, err
	}
	dir := c.installDir(env)
	command, args := condaSetup(env.Platform, art.Path, dir)
	res, err := env.Runner.Run(ctx, command, args, runner.RunOptions{})
	if err != nil {
		return Outcome{}, fmt.Errorf("miniconda installer: %w: %s", err, strings.TrimSpace(string(res.Stderr)))
	}
	if _, err := fetch.Locate(dir, exeGlob(c.binary)); err != nil {
		env.Fetcher.Invalidate(art)
		return Outcome{}, fmt.Errorf("miniconda installer finished but %s is missing: %w", c.binary, err)
	}
	env.Logger.Info().Str("tool", "miniconda").Str("version", d.Version).Str("path", dir).Msg("installed")
	return Outcome{Path: dir, Version: d.Version}, nil
}

// condaSetup builds the silent installer invocation. The NSIS installer
// wants /D last and unquoted.
func condaSetup(p Platform, installer, dir string) (string, []string) {
	if p.OS == "windows" {
		return installer, []string{
			"/InstallationType=JustMe",
			"/RegisterPython=0",
			"/AddToPath=0",
			"/S",
			"/D=" + dir,
		}
	}
	return "bash", []string{installer, "-b", "-u", "-p", dir}
}
