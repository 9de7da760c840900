package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the user-level hudo directory.
const HomeEnv = "HUDO_HOME"

// Layout captures canonical locations beneath a hudo root directory.
type Layout struct {
	Root      string
	ToolsDir  string
	LangDir   string
	IDEDir    string
	CacheDir  string
	LogsDir   string
	EnvDir    string
	StateFile string
}

// New returns the layout rooted at root.
func New(root string) Layout {
	root = filepath.Clean(root)
	return Layout{
		Root:      root,
		ToolsDir:  filepath.Join(root, "tools"),
		LangDir:   filepath.Join(root, "lang"),
		IDEDir:    filepath.Join(root, "ide"),
		CacheDir:  filepath.Join(root, "cache"),
		LogsDir:   filepath.Join(root, "logs"),
		EnvDir:    filepath.Join(root, "env"),
		StateFile: filepath.Join(root, "state.json"),
	}
}

// Resolve turns a configured root into an absolute layout.
func Resolve(root string) (Layout, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Layout{}, fmt.Errorf("resolve root: root directory is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve root: %w", err)
	}
	return New(abs), nil
}

// CategoryDir returns the parent directory for tools in the given category.
func (l Layout) CategoryDir(category string) string {
	switch category {
	case "language":
		return l.LangDir
	case "ide":
		return l.IDEDir
	default:
		return l.ToolsDir
	}
}

// EnsureDirs creates the standard directory hierarchy.
func (l Layout) EnsureDirs() error {
	dirs := []string{l.Root, l.ToolsDir, l.LangDir, l.IDEDir, l.CacheDir, l.LogsDir, l.EnvDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GlobalDir returns the user-level hudo directory (~/.hudo or $HUDO_HOME).
// It creates the directory if it does not exist.
func GlobalDir() (string, error) {
	dir := strings.TrimSpace(os.Getenv(HomeEnv))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("detect user home: %w", err)
		}
		dir = filepath.Join(home, ".hudo")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create global dir: %w", err)
	}
	return dir, nil
}

// ConfigFile returns the path to the user configuration file.
func ConfigFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
