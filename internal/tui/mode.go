package tui

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
)

// EnvNoTUI disables the live table when set to any non-empty value.
const EnvNoTUI = "HUDO_NO_TUI"

// OutputMode describes how batch progress is rendered.
type OutputMode int

const (
	// ModeTUI redraws a live table while tools install.
	ModeTUI OutputMode = iota
	// ModePlain prints one line per finished tool.
	ModePlain
	// ModeJSON prints the outcome list as JSON.
	ModeJSON
)

// DetectMode picks the output mode for out.
func DetectMode(out io.Writer, plain, jsonOutput bool) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if plain || os.Getenv(EnvNoTUI) != "" || os.Getenv("CI") != "" {
		return ModePlain
	}
	file, ok := out.(*os.File)
	if !ok {
		return ModePlain
	}
	fd := file.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return ModePlain
	}
	if runtime.GOOS != "windows" {
		term := os.Getenv("TERM")
		if term == "" || strings.EqualFold(term, "dumb") {
			return ModePlain
		}
	}
	return ModeTUI
}
