package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLayout(t *testing.T) {
	root := t.TempDir()
	l := New(root)

	if l.StateFile != filepath.Join(root, "state.json") {
		t.Fatalf("state file = %s", l.StateFile)
	}
	if got := l.CategoryDir("language"); got != filepath.Join(root, "lang") {
		t.Fatalf("language dir = %s", got)
	}
	if got := l.CategoryDir("database"); got != filepath.Join(root, "tools") {
		t.Fatalf("database dir = %s", got)
	}
}

func TestEnsureDirs(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "hudo"))
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{l.ToolsDir, l.LangDir, l.IDEDir, l.CacheDir, l.LogsDir, l.EnvDir} {
		ok, err := DirExists(dir)
		if err != nil || !ok {
			t.Fatalf("expected %s to exist (err=%v)", dir, err)
		}
	}
}

func TestResolveRejectsEmpty(t *testing.T) {
	if _, err := Resolve("  "); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestGlobalDirHonoursEnv(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom")
	t.Setenv(HomeEnv, dir)

	got, err := GlobalDir()
	if err != nil {
		t.Fatalf("GlobalDir: %v", err)
	}
	if got != dir {
		t.Fatalf("GlobalDir = %s, want %s", got, dir)
	}
	cfg, err := ConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if cfg != filepath.Join(dir, "config.yaml") {
		t.Fatalf("ConfigFile = %s", cfg)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, _ := FileExists(file); !ok {
		t.Fatal("expected file to exist")
	}
	if ok, _ := FileExists(dir); ok {
		t.Fatal("directory reported as file")
	}
	if ok, err := FileExists(filepath.Join(dir, "missing")); ok || err != nil {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}
}
