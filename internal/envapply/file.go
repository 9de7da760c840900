package envapply

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileBackend keeps hudo's environment in <dir>/env.json and regenerates
// shell snippets (hudo.env.sh, hudo.env.ps1) that users source from their
// profile.
type FileBackend struct {
	Dir string
}

func (b FileBackend) Name() string { return "file" }

func (b FileBackend) statePath() string { return filepath.Join(b.Dir, "env.json") }

type fileState struct {
	Path []string          `json:"path"`
	Vars map[string]string `json:"vars"`
}

func (b FileBackend) Load() (Snapshot, error) {
	data, err := os.ReadFile(b.statePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{Vars: map[string]string{}}, nil
		}
		return Snapshot{}, err
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", b.statePath(), err)
	}
	if st.Vars == nil {
		st.Vars = map[string]string{}
	}
	return Snapshot{Path: st.Path, Vars: st.Vars}, nil
}

func (b FileBackend) Save(s Snapshot) error {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileState{Path: s.Path, Vars: s.Vars}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(b.statePath(), data); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(b.Dir, "hudo.env.sh"), []byte(renderPosix(s))); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(b.Dir, "hudo.env.ps1"), []byte(renderPowerShell(s)))
}

func renderPosix(s Snapshot) string {
	var sb strings.Builder
	sb.WriteString("# generated by hudo; do not edit\n")
	for _, name := range sortedKeys(s.Vars) {
		fmt.Fprintf(&sb, "export %s=%s\n", name, shellQuote(s.Vars[name]))
	}
	if len(s.Path) > 0 {
		quoted := make([]string, len(s.Path))
		for i, p := range s.Path {
			quoted[i] = filepath.ToSlash(p)
		}
		fmt.Fprintf(&sb, "export PATH=%s:\"$PATH\"\n", shellQuote(strings.Join(quoted, ":")))
	}
	return sb.String()
}

func renderPowerShell(s Snapshot) string {
	var sb strings.Builder
	sb.WriteString("# generated by hudo; do not edit\n")
	for _, name := range sortedKeys(s.Vars) {
		fmt.Fprintf(&sb, "$env:%s = '%s'\n", name, strings.ReplaceAll(s.Vars[name], "'", "''"))
	}
	if len(s.Path) > 0 {
		joined := strings.ReplaceAll(strings.Join(s.Path, string(os.PathListSeparator)), "'", "''")
		fmt.Fprintf(&sb, "$env:PATH = '%s' + [IO.Path]::PathSeparator + $env:PATH\n", joined)
	}
	return sb.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".env-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
