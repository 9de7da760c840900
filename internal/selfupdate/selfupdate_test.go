package selfupdate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"hudo/internal/fetch"
)

type fixedSource struct {
	version string
	err     error
}

func (s fixedSource) Latest(context.Context) (string, error) { return s.version, s.err }

func newUpdater(t *testing.T, baseURL string) *Updater {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "hudo")
	if err := os.WriteFile(exe, []byte("old build"), 0o755); err != nil {
		t.Fatalf("write exe: %v", err)
	}
	return &Updater{
		Source:  fixedSource{version: "1.3.0"},
		BaseURL: baseURL,
		Fetcher: fetch.New(filepath.Join(dir, "cache"), zerolog.Nop()),
		Exe:     exe,
		Current: "1.2.0",
		GOOS:    "linux",
		GOARCH:  "amd64",
		Logger:  zerolog.Nop(),
	}
}

func TestCheck(t *testing.T) {
	cases := []struct {
		current string
		want    bool
	}{
		{"1.2.0", true},
		{"1.3.0", false},
		{"v1.4.0", false},
		{"dev", true},
	}
	for _, tc := range cases {
		u := newUpdater(t, "")
		u.Current = tc.current
		latest, newer, err := u.Check(context.Background())
		if err != nil {
			t.Fatalf("check %s: %v", tc.current, err)
		}
		if latest != "1.3.0" || newer != tc.want {
			t.Fatalf("check %s = (%s, %v), want (1.3.0, %v)", tc.current, latest, newer, tc.want)
		}
	}
}

func TestCheckSourceError(t *testing.T) {
	u := newUpdater(t, "")
	u.Source = fixedSource{err: errors.New("rate limited")}
	if _, _, err := u.Check(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAssetURL(t *testing.T) {
	u := newUpdater(t, "https://github.com/zexadev/hudo/releases/download/")
	if got := u.AssetURL("1.3.0"); got != "https://github.com/zexadev/hudo/releases/download/v1.3.0/hudo-linux-amd64" {
		t.Fatalf("unexpected url %s", got)
	}
	u.GOOS, u.GOARCH = "windows", "arm64"
	if got := u.AssetName(); got != "hudo-windows-arm64.exe" {
		t.Fatalf("unexpected asset %s", got)
	}
}

func TestApplyReplacesExecutable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.3.0/hudo-linux-amd64" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("new build"))
	}))
	defer srv.Close()

	u := newUpdater(t, srv.URL)
	if err := u.Apply(context.Background(), "1.3.0"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	data, err := os.ReadFile(u.Exe)
	if err != nil {
		t.Fatalf("read exe: %v", err)
	}
	if string(data) != "new build" {
		t.Fatalf("exe not replaced: %q", data)
	}
	if _, err := os.Stat(u.Exe + ".old"); !os.IsNotExist(err) {
		t.Fatalf("expected .old to be cleaned up, stat err %v", err)
	}
}

func TestApplyDownloadFailureKeepsExecutable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	u := newUpdater(t, srv.URL)
	err := u.Apply(context.Background(), "1.3.0")
	if !errors.Is(err, fetch.ErrDownloadFailed) {
		t.Fatalf("expected download failure, got %v", err)
	}
	data, _ := os.ReadFile(u.Exe)
	if string(data) != "old build" {
		t.Fatalf("exe modified on failure: %q", data)
	}
}
