package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/runner"
	"hudo/internal/version"
)

// rustInstaller runs rustup-init with RUSTUP_HOME and CARGO_HOME pinned
// below the install directory, so nothing lands in the user profile.
type rustInstaller struct {
	*recipe
}

func newRust() *rustInstaller {
	rs := &rustInstaller{}
	rs.recipe = &recipe{
		desc:   Descriptor{ID: "rust", DisplayName: "Rust", Description: "Rust toolchain via rustup", Category: CategoryLanguage},
		target: version.Target{ID: "rust", Source: version.GitHubSource{Repo: "rust-lang/rust"}, Fallback: RustVersion},
		official: func(Platform) string {
			return "https://static.rust-lang.org/rustup/dist"
		},
		locate: func(_ string, p Platform) (artifact, error) {
			triple, err := rustupTriple(p)
			if err != nil {
				return artifact{}, err
			}
			name := "rustup-init"
			if p.OS == "windows" {
				name += ".exe"
			}
			return artifact{Suffix: triple + "/" + name, FileName: triple + "-" + name, Format: fetch.FormatNone}, nil
		},
		binary: "cargo/bin/rustc",
		env: func(o Outcome) []envapply.Action {
			return []envapply.Action{
				envapply.SetVariable("RUSTUP_HOME", filepath.Join(o.Path, "rustup")),
				envapply.SetVariable("CARGO_HOME", filepath.Join(o.Path, "cargo")),
				envapply.PrependPath(filepath.Join(o.Path, "cargo", "bin")),
			}
		},
	}
	return rs
}

func rustupTriple(p Platform) (string, error) {
	arch := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[p.Arch]
	vendor := map[string]string{"windows": "pc-windows-msvc", "linux": "unknown-linux-gnu", "darwin": "apple-darwin"}[p.OS]
	if arch == "" || vendor == "" {
		return "", unsupported("rust", p)
	}
	return arch + "-" + vendor, nil
}

// gnuHost reports whether the toolchain should target the GNU ABI, which
// links with MinGW's gcc instead of requiring the MSVC build tools.
func gnuHost(p Platform) bool {
	return p.OS == "windows" && p.Arch == "amd64"
}

func (rs *rustInstaller) Install(ctx context.Context, env Env, d Download) (Outcome, error) {
	if gnuHost(env.Platform) && !hasGCC(env) {
		return Outcome{}, errors.New("rust's GNU toolchain links with gcc, which was not found; run `hudo install mingw` first")
	}

	art, err := env.Fetcher.Fetch(ctx, d.Spec())
	if err != nil {
		return Outcome{}, err
	}
	dir := rs.installDir(env)
	staging := filepath.Join(dir, "setup")
	name := "rustup-init"
	if env.Platform.OS == "windows" {
		name += ".exe"
	}
	if err := env.Fetcher.Unpack(ctx, art, staging, fetch.UnpackOptions{Rename: name}); err != nil {
		return Outcome{}, err
	}
	defer func() { _ = os.RemoveAll(staging) }()

	args := []string{"-y", "--no-modify-path", "--default-toolchain", d.Version}
	if gnuHost(env.Platform) {
		args = append(args, "--default-host", "x86_64-pc-windows-gnu")
	}
	opts := runner.RunOptions{Env: []string{
		"RUSTUP_HOME=" + filepath.Join(dir, "rustup"),
		"CARGO_HOME=" + filepath.Join(dir, "cargo"),
	}}
	res, err := env.Runner.Run(ctx, filepath.Join(staging, name), args, opts)
	if err != nil {
		return Outcome{}, fmt.Errorf("rustup-init: %w: %s", err, strings.TrimSpace(string(res.Stderr)))
	}
	if _, err := fetch.Locate(dir, exeGlob(rs.binary)); err != nil {
		return Outcome{}, fmt.Errorf("rustup-init finished but %s is missing: %w", rs.binary, err)
	}
	env.Logger.Info().Str("tool", "rust").Str("version", d.Version).Str("path", dir).Msg("installed")
	return Outcome{Path: dir, Version: d.Version}, nil
}

// hasGCC looks for hudo's MinGW first, then PATH.
func hasGCC(env Env) bool {
	mingw := filepath.Join(env.Layout.CategoryDir(string(CategoryTool)), "mingw")
	if _, err := fetch.Locate(mingw, exeGlob("bin/gcc")); err == nil {
		return true
	}
	_, err := env.lookPath("gcc")
	return err == nil
}
