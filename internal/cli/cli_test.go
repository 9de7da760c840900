package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"hudo/internal/config"
	"hudo/internal/detect"
	"hudo/internal/engine"
	"hudo/internal/installer"
	"hudo/internal/paths"
	"hudo/internal/state"
)

// withHome points hudo at a temporary global dir whose config roots
// everything in another temporary dir.
func withHome(t *testing.T) (home, root string) {
	t.Helper()
	home = t.TempDir()
	root = t.TempDir()
	t.Setenv(paths.HomeEnv, home)
	t.Setenv("HUDO_NO_TUI", "1")
	cfg := config.Default()
	cfg.RootDir = root
	if err := cfg.Save(filepath.Join(home, "config.yaml")); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return home, root
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestToolArgs(t *testing.T) {
	catalog := installer.Default()
	got := toolArgs([]string{"Git", "go", "git", " "}, catalog)
	if !reflect.DeepEqual(got, []string{"git", "go"}) {
		t.Fatalf("toolArgs = %v", got)
	}
	if all := toolArgs([]string{"git", "all"}, catalog); len(all) != len(catalog) {
		t.Fatalf("expected all to expand to %d tools, got %v", len(catalog), all)
	}
}

func TestRemovalOrderPutsDependentsFirst(t *testing.T) {
	got := removalOrder(installer.Default(), []string{"jdk", "nope", "gh", "maven"})
	want := []string{"nope", "maven", "gh", "jdk"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("removalOrder = %v, want %v", got, want)
	}
}

func TestCheckConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RootDir = "/opt/hudo"
	if c := checkConfig(cfg, []string{"git"}); c.Status != "ok" {
		t.Fatalf("got status=%q, want ok", c.Status)
	}

	cfg.Versions = map[string]string{"cobol": "1.0"}
	c := checkConfig(cfg, []string{"git"})
	if c.Status != "error" || !strings.Contains(c.Summary, "versions.cobol") {
		t.Fatalf("unexpected check %+v", c)
	}
}

func TestCheckRecords(t *testing.T) {
	results := []detect.Result{
		{ToolID: "git", State: detect.InstalledByHudo, Configured: true},
		{ToolID: "go", State: detect.InstalledByHudo},
		{ToolID: "uv", State: detect.NotInstalled, Stale: true},
		{ToolID: "gh", State: detect.InstalledExternal},
		{ToolID: "bun", State: detect.NotInstalled},
		{ToolID: "mysql", State: detect.NotInstalled, Err: errors.New("probe timed out")},
	}
	checks := checkRecords(results)

	byName := map[string]healthCheck{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	if c := byName["Tools"]; c.Status != "ok" || c.Summary != "1 managed: git" {
		t.Fatalf("unexpected tools check %+v", c)
	}
	if c := byName["Stale"]; c.Status != "warning" || !strings.Contains(c.Summary, "uv") {
		t.Fatalf("unexpected stale check %+v", c)
	}
	if c := byName["Configure"]; c.Status != "warning" || !strings.Contains(c.Summary, "hudo configure go") {
		t.Fatalf("unexpected configure check %+v", c)
	}
	if c := byName["External"]; !strings.Contains(c.Summary, "gh") {
		t.Fatalf("unexpected external check %+v", c)
	}
	if c := byName["Probe"]; !strings.Contains(c.Summary, "mysql (probe timed out)") {
		t.Fatalf("unexpected probe check %+v", c)
	}
}

func TestUninstallListingGroupsByOwnership(t *testing.T) {
	results := []detect.Result{
		{ToolID: "git", State: detect.InstalledByHudo, Version: "2.47.0", Path: "/opt/hudo/tools/git", Configured: true},
		{ToolID: "uv", State: detect.NotInstalled, Stale: true, Record: &state.Record{ToolID: "uv", Version: "0.5.0", InstallPath: "/opt/hudo/tools/uv"}},
		{ToolID: "gh", State: detect.InstalledExternal, Version: "2.60.0", Path: "/usr/bin"},
		{ToolID: "bun", State: detect.NotInstalled},
	}
	var out bytes.Buffer
	writeUninstallListing(&out, results)
	text := out.String()

	removable := strings.Index(text, "Tools hudo can remove:")
	stale := strings.Index(text, "Stale records")
	external := strings.Index(text, "Installed outside hudo")
	if removable < 0 || stale < removable || external < stale {
		t.Fatalf("sections missing or out of order:\n%s", text)
	}
	if !strings.Contains(text[removable:stale], "git") || !strings.Contains(text[stale:external], "0.5.0") || !strings.Contains(text[external:], "gh") {
		t.Fatalf("tools in the wrong section:\n%s", text)
	}
	if strings.Contains(text, "bun") {
		t.Fatalf("absent tool listed:\n%s", text)
	}

	out.Reset()
	writeUninstallListing(&out, []detect.Result{{ToolID: "bun"}})
	if !strings.Contains(out.String(), "hudo manages no tools") {
		t.Fatalf("empty listing = %q", out.String())
	}
}

func TestUninstallWithoutArgsReportsStaleRecord(t *testing.T) {
	_, root := withHome(t)
	reg, err := state.Open(paths.New(root).StateFile, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Put(state.Record{ToolID: "uv", Version: "0.5.0", InstallPath: filepath.Join(root, "tools", "uv"), Managed: true}); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "uninstall")
	if err != nil {
		t.Fatalf("uninstall: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Stale records") || !strings.Contains(out, "uv") {
		t.Fatalf("stale record not reported:\n%s", out)
	}
	if strings.Contains(out, "Tools hudo can remove:") {
		t.Fatalf("missing install listed as removable:\n%s", out)
	}
}

func TestJoinComma(t *testing.T) {
	tests := []struct {
		input []string
		want  string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "c"}, "a, b, c"},
	}

	for _, tt := range tests {
		if got := joinComma(tt.input); got != tt.want {
			t.Errorf("joinComma(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestReportOutcomesJoinsFatalErrors(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	outcomes := []engine.Outcome{
		{Tool: "git", Kind: engine.KindOK, Version: "2.47.1.2"},
		{Tool: "gh", Kind: engine.KindExternal, Err: engine.ErrExternallyManaged},
		{Tool: "jdk", Kind: engine.KindDownloadFailed, Err: errors.New("connection reset")},
	}
	err := reportOutcomes(cmd, outcomes)
	if err == nil || !strings.Contains(err.Error(), "jdk: connection reset") {
		t.Fatalf("expected joined jdk error, got %v", err)
	}
	if strings.Contains(err.Error(), "gh") {
		t.Fatalf("external outcome should not fail the command: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "2.47.1.2") || !strings.Contains(text, "check network access") {
		t.Fatalf("summary missing version or guidance:\n%s", text)
	}
}

func TestPlainObserverSkipsByteCounts(t *testing.T) {
	var out bytes.Buffer
	observe := plainObserver(&out)
	observe(engine.Event{Tool: "go", Stage: engine.StageDownload, Version: "1.23.4"})
	observe(engine.Event{Tool: "go", Stage: engine.StageDownload, Done: 10, Total: 100})
	observe(engine.Event{Tool: "go", Stage: engine.StageFailed, Err: fmt.Errorf("boom")})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.HasSuffix(lines[1], "boom") {
		t.Fatalf("unexpected failure line %q", lines[1])
	}
}

func TestConfigSetAndUnset(t *testing.T) {
	home, _ := withHome(t)
	cfgPath := filepath.Join(home, "config.yaml")

	if _, err := runCLI(t, "config", "set", "versions.go", "1.23.4"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := cfg.Lock("go"); !ok || v != "1.23.4" {
		t.Fatalf("expected go locked to 1.23.4, got %q %v", v, ok)
	}

	if _, err := runCLI(t, "config", "unset", "versions.go"); err != nil {
		t.Fatalf("config unset: %v", err)
	}
	cfg, _ = config.Load(cfgPath)
	if _, ok := cfg.Lock("go"); ok {
		t.Fatal("expected go lock removed")
	}
}

func TestConfigSetRejectsUnknownTool(t *testing.T) {
	home, _ := withHome(t)
	cfgPath := filepath.Join(home, "config.yaml")
	before, _ := os.ReadFile(cfgPath)

	_, err := runCLI(t, "config", "set", "mirrors.cobol", "https://mirror.example.com")
	if err == nil || !strings.Contains(err.Error(), "mirrors.cobol") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
	after, _ := os.ReadFile(cfgPath)
	if !bytes.Equal(before, after) {
		t.Fatal("config file changed after a rejected set")
	}
}

func TestConfigResetKeepsRoot(t *testing.T) {
	home, root := withHome(t)
	cfgPath := filepath.Join(home, "config.yaml")
	for _, kv := range [][]string{{"versions.go", "1.23.4"}, {"mirrors.go", "https://m.example/golang"}} {
		if _, err := runCLI(t, "config", "set", kv[0], kv[1]); err != nil {
			t.Fatalf("config set %s: %v", kv[0], err)
		}
	}

	if _, err := runCLI(t, "config", "reset"); err != nil {
		t.Fatalf("config reset: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := cfg.Lock("go"); ok {
		t.Fatal("version lock survived reset")
	}
	if _, ok := cfg.Mirror("go"); ok {
		t.Fatal("mirror survived reset")
	}
	if cfg.RootDir != root {
		t.Fatalf("root_dir = %q, want %q", cfg.RootDir, root)
	}
}

func TestConfigPath(t *testing.T) {
	home, _ := withHome(t)
	out, err := runCLI(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != filepath.Join(home, "config.yaml") {
		t.Fatalf("unexpected path %q", out)
	}
}

func TestListAllJSON(t *testing.T) {
	withHome(t)
	out, err := runCLI(t, "list", "--all", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(entries) != len(installer.KnownTools()) {
		t.Fatalf("expected %d entries, got %d", len(installer.KnownTools()), len(entries))
	}
	for _, e := range entries {
		if e.State != "not installed" || e.Category == "" {
			t.Fatalf("unexpected entry %+v", e)
		}
	}
}

func TestListEmpty(t *testing.T) {
	withHome(t)
	out, err := runCLI(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "hudo manages no tools") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEntryStatus(t *testing.T) {
	tests := []struct {
		entry listEntry
		want  string
	}{
		{listEntry{State: "installed", Configured: true}, "installed"},
		{listEntry{State: "installed"}, "unconfigured"},
		{listEntry{State: "not installed", Stale: true}, "stale"},
		{listEntry{State: "external", Error: "x"}, "error"},
	}
	for _, tt := range tests {
		if got := entryStatus(tt.entry); got != tt.want {
			t.Errorf("entryStatus(%+v) = %q, want %q", tt.entry, got, tt.want)
		}
	}
}

func TestSplitEditorCommand(t *testing.T) {
	if got := splitEditorCommand("  code -w "); !reflect.DeepEqual(got, []string{"code", "-w"}) {
		t.Fatalf("unexpected split %v", got)
	}
	if got := splitEditorCommand(" "); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
