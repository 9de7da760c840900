package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hudo/internal/config"
	"hudo/internal/detect"
	"hudo/internal/elevate"
	"hudo/internal/envapply"
	"hudo/internal/fetch"
	"hudo/internal/installer"
	"hudo/internal/paths"
	"hudo/internal/profile"
	"hudo/internal/runner"
	"hudo/internal/state"
	"hudo/internal/version"
)

type okRunner struct{}

func (okRunner) Run(context.Context, string, []string, runner.RunOptions) (runner.RunResult, error) {
	return runner.RunResult{}, nil
}

func notFound(string) (string, error) { return "", errors.New("not found") }

func newTestEngine(t *testing.T, cat installer.Catalog) *Engine {
	t.Helper()
	root := t.TempDir()
	layout := paths.New(root)
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	reg, err := state.Open(layout.StateFile, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.RootDir = root
	return &Engine{
		Config:   cfg,
		Layout:   layout,
		Catalog:  cat,
		Registry: reg,
		Resolver: version.NewResolver(zerolog.Nop()),
		Applier: &envapply.Applier{
			Backends: []envapply.Backend{envapply.FileBackend{Dir: layout.EnvDir}},
			Logger:   zerolog.Nop(),
		},
		Env: installer.Env{
			Layout:   layout,
			Platform: installer.Platform{OS: "windows", Arch: "amd64"},
			Fetcher:  fetch.New(layout.CacheDir, zerolog.Nop()),
			Runner:   okRunner{},
			Logger:   zerolog.Nop(),
			LookPath: notFound,
		},
		Logger: zerolog.Nop(),
		now:    func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	}
}

// fakeTool is an in-memory installer that records what the engine asks of it.
type fakeTool struct {
	desc     installer.Descriptor
	target   version.Target
	external string

	installs     int
	configures   int
	installErr   error
	configureErr error
	preErr       error
	configure    func(ctx context.Context, env installer.Env) error
	requested    []string
}

func newFake(id string, prereqs ...string) *fakeTool {
	return &fakeTool{
		desc:   installer.Descriptor{ID: id, Category: installer.CategoryTool, Prerequisites: prereqs},
		target: version.Target{ID: id, Fallback: "1.0.0"},
	}
}

func (f *fakeTool) dir(env installer.Env) string { return filepath.Join(env.Layout.ToolsDir, f.desc.ID) }

func (f *fakeTool) Describe() installer.Descriptor { return f.desc }
func (f *fakeTool) VersionTarget() version.Target  { return f.target }

func (f *fakeTool) Detect(_ context.Context, env installer.Env) (installer.Presence, error) {
	if _, err := os.Stat(f.dir(env)); err == nil {
		return installer.Presence{Found: true, Path: f.dir(env)}, nil
	}
	if f.external != "" {
		return installer.Presence{Found: true, Path: f.external, Version: "0.9.0"}, nil
	}
	return installer.Presence{}, nil
}

func (f *fakeTool) ResolveDownload(req installer.Request) (installer.Download, error) {
	f.requested = append(f.requested, req.Version)
	return installer.Download{URL: "https://example.invalid/" + f.desc.ID + "/" + req.Version, Version: req.Version}, nil
}

func (f *fakeTool) Install(_ context.Context, env installer.Env, d installer.Download) (installer.Outcome, error) {
	f.installs++
	if f.installErr != nil {
		return installer.Outcome{}, f.installErr
	}
	if err := os.MkdirAll(f.dir(env), 0o755); err != nil {
		return installer.Outcome{}, err
	}
	return installer.Outcome{Path: f.dir(env), Version: d.Version}, nil
}

func (f *fakeTool) EnvActions(o installer.Outcome) []envapply.Action {
	return []envapply.Action{envapply.PrependPath(o.Path)}
}

func (f *fakeTool) Configure(ctx context.Context, env installer.Env, _ installer.Outcome) error {
	f.configures++
	if f.configure != nil {
		return f.configure(ctx, env)
	}
	return f.configureErr
}

func (f *fakeTool) PreUninstall(context.Context, installer.Env, installer.Outcome) error {
	return f.preErr
}

type fakePorter struct {
	*fakeTool
	settings map[string]string
	imported map[string]string
}

func (p *fakePorter) ExportConfig(context.Context, installer.Env) (map[string]string, error) {
	return p.settings, nil
}

func (p *fakePorter) ImportConfig(_ context.Context, _ installer.Env, settings map[string]string) error {
	p.imported = settings
	return nil
}

// retarget swaps the version source of a real recipe.
type retarget struct {
	installer.Installer
	target version.Target
}

func (r retarget) VersionTarget() version.Target { return r.target }

func zipOf(t *testing.T, files ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte("bin"))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGitInstallListUninstall(t *testing.T) {
	payload := zipOf(t, "cmd/git.exe", "mingw64/bin/git.exe")
	var downloads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/git-for-windows/git/releases/latest":
			_, _ = fmt.Fprint(w, `{"tag_name":"v2.47.1.windows.2"}`)
		case "/dl/v2.47.1.windows.2/MinGit-2.47.1.2-64-bit.zip":
			atomic.AddInt32(&downloads, 1)
			_, _ = w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	git, _ := installer.Default().Lookup("git")
	e := newTestEngine(t, installer.Catalog{
		"git": retarget{Installer: git, target: version.Target{
			ID:       "git",
			Source:   version.GitHubSource{API: srv.URL, Repo: "git-for-windows/git", Parse: version.ParseGitTag},
			Fallback: installer.GitVersion,
		}},
	})
	e.Config.Mirrors["git"] = srv.URL + "/dl"
	ctx := context.Background()

	out, err := e.Install(ctx, "git", Options{})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if out.Kind != KindOK || out.Version != "2.47.1.2" {
		t.Fatalf("outcome = %+v", out)
	}

	rec, ok := e.Registry.Get("git")
	if !ok {
		t.Fatal("no record")
	}
	want := state.Record{ToolID: "git", Version: "2.47.1.2", InstallPath: filepath.Join(e.Layout.ToolsDir, "git"), Managed: true, Configured: true}
	rec.InstalledAt = time.Time{}
	if rec != want {
		t.Fatalf("record = %+v, want %+v", rec, want)
	}

	listed, err := e.Detector().DetectAll(ctx, []string{"git"}, detect.Fast)
	if err != nil {
		t.Fatal(err)
	}
	if got := listed[0]; got.State != detect.InstalledByHudo || got.Version != want.Version || got.Path != want.InstallPath || !got.Configured {
		t.Fatalf("list = %+v", got)
	}
	probed, _ := e.Detector().Detect(ctx, "git", detect.Thorough)
	if probed.State != detect.InstalledByHudo {
		t.Fatalf("thorough = %+v", probed)
	}

	snap, err := envapply.FileBackend{Dir: e.Layout.EnvDir}.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Path) != 1 || snap.Path[0] != filepath.Join(want.InstallPath, "cmd") {
		t.Fatalf("PATH = %v", snap.Path)
	}

	if _, err := e.Uninstall(ctx, "git", UninstallOptions{}); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, ok := e.Registry.Get("git"); ok {
		t.Fatal("record survived uninstall")
	}
	if _, err := os.Stat(want.InstallPath); !os.IsNotExist(err) {
		t.Fatalf("install dir survived: %v", err)
	}
	snap, _ = envapply.FileBackend{Dir: e.Layout.EnvDir}.Load()
	if len(snap.Path) != 0 {
		t.Fatalf("PATH after uninstall = %v", snap.Path)
	}
	if downloads != 1 {
		t.Fatalf("downloads = %d", downloads)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	payload := zipOf(t, "go/bin/go.exe")
	var downloads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downloads, 1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	e := newTestEngine(t, installer.Default())
	e.Config.Versions["go"] = "1.23.0"
	e.Config.Mirrors["go"] = srv.URL + "/golang"
	ctx := context.Background()

	if _, err := e.Install(ctx, "go", Options{}); err != nil {
		t.Fatalf("first install: %v", err)
	}
	out, err := e.Install(ctx, "go", Options{})
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if out.Kind != KindAlreadyManaged || !errors.Is(out.Err, ErrAlreadyManaged) {
		t.Fatalf("second outcome = %+v", out)
	}
	if downloads != 1 {
		t.Fatalf("downloads = %d, want 1", downloads)
	}
	if n := len(e.Registry.List()); n != 1 {
		t.Fatalf("records = %d", n)
	}
}

func TestLockedVersionAddressesDownload(t *testing.T) {
	var requested string
	payload := zipOf(t, "go/bin/go.exe")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	go1, _ := installer.Default().Lookup("go")
	latest := &countingSource{version: "1.99.0"}
	e := newTestEngine(t, installer.Catalog{"go": retarget{Installer: go1, target: version.Target{ID: "go", Source: latest, Fallback: "1.24.0"}}})
	e.Config.Versions["go"] = "1.23.0"
	e.Config.Mirrors["go"] = srv.URL + "/golang"

	out, err := e.Install(context.Background(), "go", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if requested != "/golang/go1.23.0.windows-amd64.zip" || out.Version != "1.23.0" {
		t.Fatalf("requested %s, outcome %+v", requested, out)
	}
	if latest.calls != 0 {
		t.Fatal("remote source consulted despite a lock")
	}
}

type countingSource struct {
	version string
	calls   int
}

func (s *countingSource) Latest(context.Context) (string, error) {
	s.calls++
	return s.version, nil
}

type failingSource struct{ calls int }

func (s *failingSource) Latest(context.Context) (string, error) {
	s.calls++
	return "", errors.New("403 rate limited")
}

func TestManagedToolIsNotDowngradedByFallback(t *testing.T) {
	tool := newFake("demo")
	src := &failingSource{}
	tool.target.Source = src
	e := newTestEngine(t, installer.Catalog{"demo": tool})
	ctx := context.Background()

	dir := tool.dir(e.Env)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := e.Registry.Put(state.Record{ToolID: "demo", Version: "2.0.0", InstallPath: dir, Managed: true, Configured: true}); err != nil {
		t.Fatal(err)
	}

	out, err := e.Install(ctx, "demo", Options{})
	if err != nil || out.Kind != KindAlreadyManaged {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if tool.installs != 0 || src.calls != 0 {
		t.Fatalf("installs = %d, remote calls = %d; want none", tool.installs, src.calls)
	}

	out, err = e.Install(ctx, "demo", Options{Force: true})
	if err != nil {
		t.Fatalf("forced install: %v", err)
	}
	if tool.installs != 1 || src.calls != 1 {
		t.Fatalf("installs = %d, remote calls = %d", tool.installs, src.calls)
	}
	if rec, _ := e.Registry.Get("demo"); rec.Version != "2.0.0" || out.Version != "2.0.0" {
		t.Fatalf("record = %+v, outcome = %+v; want 2.0.0 kept", rec, out)
	}
}

func TestLockChangeReinstallsManagedTool(t *testing.T) {
	tool := newFake("demo")
	e := newTestEngine(t, installer.Catalog{"demo": tool})
	ctx := context.Background()

	if _, err := e.Install(ctx, "demo", Options{}); err != nil {
		t.Fatal(err)
	}
	e.Config.Versions["demo"] = "1.5.0"
	out, err := e.Install(ctx, "demo", Options{})
	if err != nil || out.Kind != KindOK || out.Version != "1.5.0" {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if tool.installs != 2 {
		t.Fatalf("installs = %d, want 2", tool.installs)
	}
}

func TestConfigureFailureIsRepairableWithoutReinstall(t *testing.T) {
	tool := newFake("svc")
	tool.configureErr = errors.New("service did not start")
	e := newTestEngine(t, installer.Catalog{"svc": tool})
	ctx := context.Background()

	out, err := e.Install(ctx, "svc", Options{})
	if !errors.Is(err, installer.ErrConfigureFailed) || out.Kind != KindConfigureFailed {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	rec, ok := e.Registry.Get("svc")
	if !ok || rec.Configured || !rec.Managed {
		t.Fatalf("record after failed configure = %+v, %v", rec, ok)
	}

	tool.configureErr = nil
	out, err = e.Install(ctx, "svc", Options{})
	if err != nil || out.Kind != KindOK {
		t.Fatalf("repair = %+v, %v", out, err)
	}
	if tool.installs != 1 {
		t.Fatalf("installs = %d, want 1", tool.installs)
	}
	if rec, _ := e.Registry.Get("svc"); !rec.Configured {
		t.Fatal("repair did not mark configured")
	}
}

func TestConfigureOnlyRepair(t *testing.T) {
	tool := newFake("svc")
	e := newTestEngine(t, installer.Catalog{"svc": tool})
	ctx := context.Background()

	if _, err := e.Install(ctx, "svc", Options{SkipConfigure: true}); err != nil {
		t.Fatal(err)
	}
	if rec, _ := e.Registry.Get("svc"); rec.Configured {
		t.Fatal("SkipConfigure still configured")
	}
	if _, err := e.Configure(ctx, "svc"); err != nil {
		t.Fatal(err)
	}
	if rec, _ := e.Registry.Get("svc"); !rec.Configured || tool.installs != 1 || tool.configures != 1 {
		t.Fatalf("record %+v installs %d configures %d", rec, tool.installs, tool.configures)
	}
	if _, err := e.Configure(ctx, "missing"); !errors.Is(err, installer.ErrUnknownTool) {
		t.Fatalf("unknown: %v", err)
	}
	e.Catalog["other"] = newFake("other")
	if _, err := e.Configure(ctx, "other"); !errors.Is(err, ErrNotManaged) {
		t.Fatalf("unmanaged: %v", err)
	}
}

func TestVerificationTimeoutFailsConfigure(t *testing.T) {
	tool := newFake("db")
	e := newTestEngine(t, installer.Catalog{"db": tool})
	e.Env.Elevated = &elevate.Runner{
		Elevator:     elevatorFunc(func() error { return nil }),
		Query:        queryFunc(func() elevate.ServiceState { return elevate.StateStopped }),
		PollInterval: 5 * time.Millisecond,
		Timeout:      30 * time.Millisecond,
		Logger:       zerolog.Nop(),
	}
	tool.configure = func(ctx context.Context, env installer.Env) error {
		return env.Elevated.Run(ctx, elevate.Action{Description: "start db", Command: "net", Args: []string{"start", "db"}, Service: "db", Target: elevate.StateRunning})
	}

	out, err := e.Install(context.Background(), "db", Options{})
	if !errors.Is(err, elevate.ErrElevationVerificationTimeout) || out.Kind != KindVerifyTimeout {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if rec, ok := e.Registry.Get("db"); !ok || rec.Configured {
		t.Fatalf("record = %+v, %v", rec, ok)
	}
}

type elevatorFunc func() error

func (f elevatorFunc) Elevate(context.Context, string, []string) error { return f() }

type queryFunc func() elevate.ServiceState

func (f queryFunc) State(context.Context, string) (elevate.ServiceState, error) { return f(), nil }

func TestExternalToolIsLeftAlone(t *testing.T) {
	tool := newFake("node")
	tool.external = "/usr/local/bin"
	e := newTestEngine(t, installer.Catalog{"node": tool})
	ctx := context.Background()

	out, err := e.Install(ctx, "node", Options{})
	if !errors.Is(err, ErrExternallyManaged) || out.Kind != KindExternal || out.Kind.Fatal() {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if tool.installs != 0 {
		t.Fatal("installed over an external tool")
	}
	if _, ok := e.Registry.Get("node"); ok {
		t.Fatal("external tool recorded")
	}

	if _, err := e.Uninstall(ctx, "node", UninstallOptions{Force: true}); !errors.Is(err, ErrExternallyManaged) {
		t.Fatalf("uninstall external: %v", err)
	}

	out, err = e.Install(ctx, "node", Options{Takeover: true})
	if err != nil || out.Kind != KindOK || tool.installs != 1 {
		t.Fatalf("takeover = %+v, %v", out, err)
	}
}

func TestInstallManyOrdersAndCascades(t *testing.T) {
	jdk := newFake("jdk")
	jdk.installErr = fmt.Errorf("%w: 503", fetch.ErrDownloadFailed)
	maven := newFake("maven", "jdk")
	gh := newFake("gh")
	e := newTestEngine(t, installer.Catalog{"jdk": jdk, "maven": maven, "gh": gh})

	var stages []string
	e.Observer = func(ev Event) {
		if ev.Stage == StageFailed || ev.Stage == StageSkipped || ev.Stage == StageDone {
			stages = append(stages, ev.Tool+":"+string(ev.Stage))
		}
	}

	outs := e.InstallMany(context.Background(), []string{"maven", "gh", "nope"}, Options{})
	var got []string
	for _, o := range outs {
		got = append(got, o.Tool+"="+string(o.Kind))
	}
	want := []string{"nope=unknown-tool", "jdk=download-failed", "maven=prerequisite-failed", "gh=ok"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("outcomes = %v", got)
	}
	if maven.installs != 0 {
		t.Fatal("maven attempted without its prerequisite")
	}
	if !reflect.DeepEqual(stages, []string{"jdk:failed", "maven:skipped", "gh:done"}) {
		t.Fatalf("stages = %v", stages)
	}
}

func TestUninstallKeepsRecordOnFailure(t *testing.T) {
	tool := newFake("db")
	e := newTestEngine(t, installer.Catalog{"db": tool})
	ctx := context.Background()
	if _, err := e.Install(ctx, "db", Options{}); err != nil {
		t.Fatal(err)
	}

	tool.preErr = fmt.Errorf("stop: %w", elevate.ErrElevationDenied)
	_, err := e.Uninstall(ctx, "db", UninstallOptions{})
	if Classify(err) != KindElevationDenied {
		t.Fatalf("err = %v", err)
	}
	if _, ok := e.Registry.Get("db"); !ok {
		t.Fatal("record dropped after failed uninstall")
	}
	if _, err := os.Stat(tool.dir(e.Env)); err != nil {
		t.Fatal("files removed after failed service stop")
	}

	if _, err := e.Uninstall(ctx, "db", UninstallOptions{Force: true}); err != nil {
		t.Fatalf("forced uninstall: %v", err)
	}
	if _, ok := e.Registry.Get("db"); ok {
		t.Fatal("forced uninstall kept the record")
	}
}

func TestUninstallNotManaged(t *testing.T) {
	e := newTestEngine(t, installer.Catalog{"bun": newFake("bun")})
	if _, err := e.Uninstall(context.Background(), "bun", UninstallOptions{}); !errors.Is(err, ErrNotManaged) {
		t.Fatalf("err = %v", err)
	}
}

func TestRemoveInstallDirStaysInsideRoot(t *testing.T) {
	e := newTestEngine(t, installer.Catalog{})
	outside := t.TempDir()
	if err := e.removeInstallDir(outside); err == nil {
		t.Fatal("removed a directory outside the root")
	}
	if err := e.removeInstallDir(e.Layout.Root); err == nil {
		t.Fatal("removed the root itself")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatal(err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	// app's prerequisite sorts after it, so the profile lists it last.
	newCatalog := func() (installer.Catalog, *fakePorter) {
		git := &fakePorter{fakeTool: newFake("git"), settings: map[string]string{"user_name": "Ada", "oauth_token": "secret"}}
		git.target.Source = &countingSource{version: "3.0.0"}
		return installer.Catalog{
			"git":  git,
			"zlib": newFake("zlib"),
			"app":  newFake("app", "zlib"),
		}, git
	}
	ctx := context.Background()

	srcCat, _ := newCatalog()
	src := newTestEngine(t, srcCat)
	src.Config.Versions["zlib"] = "1.3.1"
	src.Config.Mirrors["app"] = "https://m.example/app"
	for _, out := range src.InstallMany(ctx, []string{"app", "git"}, Options{}) {
		if out.Err != nil {
			t.Fatalf("%s: %v", out.Tool, out.Err)
		}
	}
	exported, err := src.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, leaked := exported.ToolConfig["git"]["oauth_token"]; leaked {
		t.Fatal("secret exported")
	}

	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := exported.Save(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "secret") {
		t.Fatalf("profile file contains a secret:\n%s", data)
	}
	p, err := profile.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.IDs(), []string{"app", "git", "zlib"}) {
		t.Fatalf("profile ids = %v", p.IDs())
	}
	if p.Settings.Versions["zlib"] != "1.3.1" || p.Settings.Mirrors["app"] != "https://m.example/app" {
		t.Fatalf("settings = %+v", p.Settings)
	}

	dstCat, dstGit := newCatalog()
	dst := newTestEngine(t, dstCat)
	// A lock on the target machine does not override the profile.
	dst.Config.Versions["git"] = "1.0.0"
	outcomes := dst.Import(ctx, p, Options{})
	var order []string
	for _, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("import %s: %v", out.Tool, out.Err)
		}
		order = append(order, out.Tool)
	}
	if !reflect.DeepEqual(order, []string{"zlib", "app", "git"}) {
		t.Fatalf("import order = %v", order)
	}

	versions := func(e *Engine) map[string]string {
		out := map[string]string{}
		for _, rec := range e.Registry.List() {
			out[rec.ToolID] = rec.Version
		}
		return out
	}
	if got, want := versions(dst), versions(src); !reflect.DeepEqual(got, want) {
		t.Fatalf("imported %v, exported %v", got, want)
	}
	if want := map[string]string{"user_name": "Ada"}; !reflect.DeepEqual(dstGit.imported, want) {
		t.Fatalf("imported settings = %v", dstGit.imported)
	}
	if dst.Config.Versions["git"] != "1.0.0" {
		t.Fatal("import modified the configuration")
	}

	again := dst.Import(ctx, p, Options{})
	for _, out := range again {
		if out.Kind != KindAlreadyManaged {
			t.Fatalf("re-import %s = %s", out.Tool, out.Kind)
		}
	}
}

func TestImportFillsLocksForUnlistedPrerequisites(t *testing.T) {
	catalog := func() installer.Catalog {
		return installer.Catalog{"zlib": newFake("zlib"), "app": newFake("app", "zlib")}
	}
	p := profile.New(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	p.Tools["app"] = "2.0.0"
	p.Settings.Versions = map[string]string{"zlib": "1.3.1", "app": "1.0.0"}
	ctx := context.Background()

	fresh := newTestEngine(t, catalog())
	for _, out := range fresh.Import(ctx, p, Options{}) {
		if out.Err != nil {
			t.Fatalf("import %s: %v", out.Tool, out.Err)
		}
	}
	if rec, _ := fresh.Registry.Get("zlib"); rec.Version != "1.3.1" {
		t.Fatalf("zlib = %q, want the profile's lock", rec.Version)
	}
	if rec, _ := fresh.Registry.Get("app"); rec.Version != "2.0.0" {
		t.Fatalf("app = %q, want the profile's tool version", rec.Version)
	}
	if _, ok := fresh.Config.Lock("zlib"); ok {
		t.Fatal("import persisted a lock")
	}

	locked := newTestEngine(t, catalog())
	locked.Config.Versions["zlib"] = "1.2.0"
	locked.Import(ctx, p, Options{})
	if rec, _ := locked.Registry.Get("zlib"); rec.Version != "1.2.0" {
		t.Fatalf("zlib = %q, want the local lock", rec.Version)
	}
}

func TestClassifyAndGuidance(t *testing.T) {
	denied := fmt.Errorf("%w: pgsql: %w", installer.ErrConfigureFailed, elevate.ErrElevationDenied)
	timeout := fmt.Errorf("%w: pgsql: %w", installer.ErrConfigureFailed, elevate.ErrElevationVerificationTimeout)
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindOK},
		{denied, KindElevationDenied},
		{timeout, KindVerifyTimeout},
		{fmt.Errorf("%w: go", installer.ErrConfigureFailed), KindConfigureFailed},
		{fmt.Errorf("x: %w", fetch.ErrIntegrityMismatch), KindIntegrity},
		{fmt.Errorf("x: %w", fetch.ErrExtractFailed), KindExtractFailed},
		{fmt.Errorf("x: %w", fetch.ErrDownloadFailed), KindDownloadFailed},
		{fmt.Errorf("x: %w", version.ErrVersionUnavailable), KindVersionUnavailable},
		{context.Canceled, KindCanceled},
		{errors.New("boom"), KindFailed},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	d, to := Guidance(KindElevationDenied), Guidance(KindVerifyTimeout)
	if len(d) == 0 || len(to) == 0 || reflect.DeepEqual(d, to) {
		t.Fatal("denied and timeout need distinct guidance")
	}
}
