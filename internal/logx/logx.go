package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hudo/internal/paths"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "HUDO_LOG_LEVEL"

// Options controls logger construction.
type Options struct {
	Level   string
	Verbose bool
	Stderr  io.Writer
}

// New creates a logger that writes to a timestamped file inside the layout's
// logs directory. The returned closer should be closed when logging is no
// longer needed.
func New(l paths.Layout, opts Options) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(l.LogsDir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(l.LogsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	var out io.Writer = file
	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		out = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.RFC3339,
		})
	}

	logger := zerolog.New(out).
		Level(ResolveLevel(opts.Level)).
		With().
		Timestamp().
		Str("app", "hudo").
		Str("run", uuid.NewString()).
		Logger()
	return logger, file, nil
}

// ResolveLevel picks the effective level: the environment override wins over
// the configured value, and anything unparseable means info.
func ResolveLevel(configured string) zerolog.Level {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		return lvl
	}
	if lvl, ok := parseLevel(configured); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

func parseLevel(raw string) (zerolog.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel, false
	}
	if raw == "warning" {
		raw = "warn"
	}
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}
