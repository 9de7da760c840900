package installer

import (
	"context"
	"errors"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"

	"hudo/internal/config"
	"hudo/internal/elevate"
	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/paths"
	"hudo/internal/runner"
	"hudo/internal/version"
)

var (
	ErrConfigureFailed     = errors.New("installer: configure failed")
	ErrUnsupportedPlatform = errors.New("installer: unsupported platform")
	ErrUnknownTool         = errors.New("installer: unknown tool")
)

// Category groups tools for listing and decides their parent directory.
type Category string

const (
	CategoryTool     Category = "tool"
	CategoryLanguage Category = "language"
	CategoryDatabase Category = "database"
	CategoryIDE      Category = "ide"
)

// Descriptor is the static description of a tool.
type Descriptor struct {
	ID            string
	DisplayName   string
	Description   string
	Category      Category
	Prerequisites []string
	// Service names the OS service the tool registers, if any.
	Service string
}

// Platform is the OS/architecture pair downloads are addressed for.
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform hudo is running on.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Request carries what ResolveDownload needs.
type Request struct {
	Config   config.Config
	Version  string
	Platform Platform
}

// Download is a resolved, version-addressed artifact.
type Download struct {
	URL      string
	FileName string
	SHA256   string
	Format   fetch.Format
	Version  string
}

// Spec converts d into a fetch request.
func (d Download) Spec() fetch.Spec {
	return fetch.Spec{URL: d.URL, FileName: d.FileName, SHA256: d.SHA256, Format: d.Format}
}

// Outcome is the result of a successful install.
type Outcome struct {
	Path    string
	Version string
}

// Presence is what a filesystem/PATH/service probe found.
type Presence struct {
	Found   bool
	Path    string // install directory, or the directory holding the binary
	Binary  string
	Version string
}

// Env is the toolbox handed to side-effecting installer operations.
type Env struct {
	Layout   paths.Layout
	Platform Platform
	Fetcher  *fetch.Fetcher
	Runner   runner.Runner
	Elevated *elevate.Runner
	Logger   zerolog.Logger
	// LookPath resolves a command on PATH; defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

func (e Env) lookPath(name string) (string, error) {
	if e.LookPath != nil {
		return e.LookPath(name)
	}
	return exec.LookPath(name)
}

// Installer is the capability set every tool implements.
type Installer interface {
	Describe() Descriptor
	// VersionTarget tells the resolver where this tool's versions come from.
	VersionTarget() version.Target
	// Detect probes the filesystem, PATH and services. It never mutates state.
	Detect(ctx context.Context, env Env) (Presence, error)
	ResolveDownload(req Request) (Download, error)
	Install(ctx context.Context, env Env, d Download) (Outcome, error)
	// EnvActions is a pure function of the install outcome.
	EnvActions(o Outcome) []envapply.Action
	// Configure may need elevation and must be safe to retry.
	Configure(ctx context.Context, env Env, o Outcome) error
}

// PreUninstaller is implemented by tools that must release OS resources,
// such as registered services, before their files can be removed.
type PreUninstaller interface {
	PreUninstall(ctx context.Context, env Env, o Outcome) error
}

// ConfigPorter is implemented by tools with portable user settings.
type ConfigPorter interface {
	ExportConfig(ctx context.Context, env Env) (map[string]string, error)
	ImportConfig(ctx context.Context, env Env, settings map[string]string) error
}
