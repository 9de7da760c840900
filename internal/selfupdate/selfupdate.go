// Package selfupdate replaces the running hudo binary with the latest release.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"hudo/internal/fetch"
	"hudo/internal/version"
)

// Repo is the GitHub repository publishing hudo releases.
const Repo = "zexadev/hudo"


// Updater checks for and installs new hudo releases.
type Updater struct {
	Source  version.Source
	BaseURL string // release download base, e.g. https://github.com/zexadev/hudo/releases/download
	Fetcher *fetch.Fetcher
	Exe     string // path of the running executable
	Current string
	GOOS    string
	GOARCH  string
	Logger  zerolog.Logger
}

// New returns an Updater for the running executable.
func New(current string, fetcher *fetch.Fetcher, logger zerolog.Logger) (*Updater, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return &Updater{
		Source:  version.GitHubSource{Repo: Repo},
		BaseURL: "https://github.com/" + Repo + "/releases/download",
		Fetcher: fetcher,
		Exe:     exe,
		Current: current,
		GOOS:    runtime.GOOS,
		GOARCH:  runtime.GOARCH,
		Logger:  logger,
	}, nil
}

// Check returns the latest published version and whether it is newer than
// the running build. Development builds always report an update.
func (u *Updater) Check(ctx context.Context) (string, bool, error) {
	latest, err := u.Source.Latest(ctx)
	if err != nil {
		return "", false, fmt.Errorf("check latest release: %w", err)
	}
	current := strings.TrimPrefix(strings.TrimSpace(u.Current), "v")
	if current == "" || current == "dev" {
		return latest, true, nil
	}
	return latest, !version.MeetsMinimum(current, latest), nil
}

// AssetName is the release file for the target platform.
func (u *Updater) AssetName() string {
	name := fmt.Sprintf("hudo-%s-%s", u.GOOS, u.GOARCH)
	if u.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// AssetURL is the download address of latest's binary.
func (u *Updater) AssetURL(latest string) string {
	return fmt.Sprintf("%s/v%s/%s", strings.TrimRight(u.BaseURL, "/"), latest, u.AssetName())
}

// Apply downloads latest and swaps it in for the running executable. The
// previous binary is kept as <exe>.old until the swap succeeds and restored
// if it does not.
func (u *Updater) Apply(ctx context.Context, latest string) error {
	if strings.TrimSpace(latest) == "" {
		return errors.New("no release version given")
	}
	artifact, err := u.Fetcher.Fetch(ctx, fetch.Spec{
		URL:      u.AssetURL(latest),
		FileName: fmt.Sprintf("hudo-%s-%s", latest, u.AssetName()),
		Format:   fetch.FormatNone,
	})
	if err != nil {
		return err
	}

	dir := filepath.Dir(u.Exe)
	staged, err := os.CreateTemp(dir, ".hudo-update-*")
	if err != nil {
		return fmt.Errorf("stage update: %w", err)
	}
	stagedPath := staged.Name()
	defer func() { _ = os.Remove(stagedPath) }()

	if err := copyInto(staged, artifact.Path); err != nil {
		return err
	}
	if err := os.Chmod(stagedPath, 0o755); err != nil {
		return fmt.Errorf("stage update: %w", err)
	}

	old := u.Exe + ".old"
	_ = os.Remove(old)
	if err := os.Rename(u.Exe, old); err != nil {
		return fmt.Errorf("move current executable aside: %w", err)
	}
	if err := os.Rename(stagedPath, u.Exe); err != nil {
		if rbErr := os.Rename(old, u.Exe); rbErr != nil {
			return fmt.Errorf("replace executable: %w (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("replace executable: %w", err)
	}

	// Windows keeps the running image locked; the .old file is removed on the next update.
	if err := os.Remove(old); err != nil {
		u.Logger.Debug().Err(err).Str("path", old).Msg("previous executable left in place")
	}
	u.Logger.Info().Str("from", u.Current).Str("to", latest).Str("path", u.Exe).Msg("self-update complete")
	return nil
}

func copyInto(dst *os.File, src string) error {
	in, err := os.Open(src)
	if err != nil {
		dst.Close()
		return fmt.Errorf("open downloaded binary: %w", err)
	}
	defer in.Close()
	if _, err := io.Copy(dst, in); err != nil {
		dst.Close()
		return fmt.Errorf("stage update: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("stage update: %w", err)
	}
	return nil
}
