package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/runner"
	"hudo/internal/version"
)

// artifact is the version-addressed part of a download: the path below the
// base URL plus how to unpack it.
type artifact struct {
	Suffix   string
	FileName string
	Format   fetch.Format
}

// recipe is the common archive-based installer. Tool files fill in the
// fields that differ; hooks are optional.
type recipe struct {
	desc   Descriptor
	target version.Target

	// official returns the download base for a platform.
	official func(p Platform) string
	// locate builds the version-addressed suffix; an error means the
	// platform is unsupported.
	locate func(v string, p Platform) (artifact, error)

	// binary is the main executable relative to the install dir, without
	// an extension, e.g. "bin/go".
	binary      string
	versionArgs []string
	strip       bool
	rename      string

	// probe replaces running the binary to learn its version.
	probe func(ctx context.Context, env Env, bin string) string

	env       func(o Outcome) []envapply.Action
	configure func(ctx context.Context, env Env, o Outcome) error
}

func (r *recipe) Describe() Descriptor {
	d := r.desc
	d.Prerequisites = append([]string(nil), r.desc.Prerequisites...)
	return d
}

func (r *recipe) VersionTarget() version.Target { return r.target }

// InstallDir is where the tool lives under the layout.
func (r *recipe) installDir(env Env) string {
	return filepath.Join(env.Layout.CategoryDir(string(r.desc.Category)), r.desc.ID)
}

func (r *recipe) ResolveDownload(req Request) (Download, error) {
	art, err := r.locate(req.Version, req.Platform)
	if err != nil {
		return Download{}, err
	}
	base := r.official(req.Platform)
	if mirror, ok := req.Config.Mirror(r.desc.ID); ok {
		base = mirror
	}
	name := art.FileName
	if name == "" {
		name = art.Suffix[strings.LastIndex(art.Suffix, "/")+1:]
	}
	format := art.Format
	if format == "" {
		format = fetch.FormatFromName(name)
	}
	return Download{
		URL:      joinURL(base, art.Suffix),
		FileName: name,
		Format:   format,
		Version:  req.Version,
	}, nil
}

func (r *recipe) Install(ctx context.Context, env Env, d Download) (Outcome, error) {
	art, err := env.Fetcher.Fetch(ctx, d.Spec())
	if err != nil {
		return Outcome{}, err
	}
	dir := r.installDir(env)
	if err := env.Fetcher.Unpack(ctx, art, dir, fetch.UnpackOptions{StripSingleRoot: r.strip, Rename: r.rename}); err != nil {
		return Outcome{}, err
	}
	if _, err := fetch.Locate(dir, exeGlob(r.binary)); err != nil {
		_ = os.RemoveAll(dir)
		env.Fetcher.Invalidate(art)
		return Outcome{}, fmt.Errorf("%w: %s archive has no %s", fetch.ErrExtractFailed, r.desc.ID, r.binary)
	}
	env.Logger.Info().Str("tool", r.desc.ID).Str("version", d.Version).Str("path", dir).Msg("installed")
	return Outcome{Path: dir, Version: d.Version}, nil
}

func (r *recipe) EnvActions(o Outcome) []envapply.Action {
	if r.env == nil {
		return []envapply.Action{envapply.PrependPath(filepath.Join(o.Path, filepath.Dir(filepath.FromSlash(r.binary))))}
	}
	return r.env(o)
}

func (r *recipe) Configure(ctx context.Context, env Env, o Outcome) error {
	if r.configure == nil {
		return nil
	}
	if err := r.configure(ctx, env, o); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigureFailed, r.desc.ID, err)
	}
	return nil
}

func (r *recipe) Detect(ctx context.Context, env Env) (Presence, error) {
	dir := r.installDir(env)
	if bin, err := fetch.Locate(dir, exeGlob(r.binary)); err == nil {
		return Presence{Found: true, Path: dir, Binary: bin, Version: r.probeVersion(ctx, env, bin)}, nil
	}
	name := filepath.Base(filepath.FromSlash(r.binary))
	if bin, err := env.lookPath(name); err == nil {
		return Presence{Found: true, Path: filepath.Dir(bin), Binary: bin, Version: r.probeVersion(ctx, env, bin)}, nil
	}
	if err := ctx.Err(); err != nil {
		return Presence{}, err
	}
	return Presence{}, nil
}

func (r *recipe) probeVersion(ctx context.Context, env Env, bin string) string {
	if r.probe != nil {
		return r.probe(ctx, env, bin)
	}
	if env.Runner == nil {
		return ""
	}
	args := r.versionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, _ := env.Runner.Run(probeCtx, bin, args, runner.RunOptions{})
	if v := version.Extract(string(res.Stdout)); v != "" {
		return v
	}
	return version.Extract(string(res.Stderr))
}

// productInfoVersion reads the version from the product-info.json JetBrains
// IDEs ship next to their bin directory.
func productInfoVersion(_ context.Context, _ Env, bin string) string {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(filepath.Dir(bin)), "product-info.json"))
	if err != nil {
		return ""
	}
	var info struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return ""
	}
	return info.Version
}

// exeGlob matches a binary with any of the executable extensions hudo's
// tools ship with.
func exeGlob(rel string) string {
	return rel + "{,.exe,.cmd,.bat}"
}

func joinURL(base, suffix string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(suffix, "/")
}

func unsupported(id string, p Platform) error {
	return fmt.Errorf("%w: %s has no build for %s/%s", ErrUnsupportedPlatform, id, p.OS, p.Arch)
}

// archiveExt is the conventional archive extension per OS.
func archiveExt(p Platform) string {
	if p.OS == "windows" {
		return "zip"
	}
	return "tar.gz"
}
