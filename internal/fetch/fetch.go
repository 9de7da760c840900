package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

var (
	ErrDownloadFailed    = errors.New("fetch: download failed")
	ErrIntegrityMismatch = errors.New("fetch: integrity mismatch")
	ErrExtractFailed     = errors.New("fetch: extract failed")
)

// UserAgent is sent with every download request.
const UserAgent = "hudo/1.0"

// Format identifies how a downloaded artifact is unpacked.
type Format string

const (
	FormatNone  Format = "none" // single file, copied as-is
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// Spec describes one downloadable artifact.
type Spec struct {
	URL      string
	FileName string // cache file name; inferred from URL when empty
	SHA256   string // optional expected digest
	Format   Format
}

// Artifact is a verified file in the download cache.
type Artifact struct {
	Path   string
	Size   int64
	SHA256 string
	Cached bool
	Format Format
}

// Fetcher downloads artifacts into a cache directory.
type Fetcher struct {
	CacheDir string
	Client   *http.Client
	Logger   zerolog.Logger
	// Progress, when set, receives byte counts while downloading.
	Progress func(done, total int64)
}

// New returns a Fetcher caching into dir.
func New(dir string, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		CacheDir: dir,
		Client:   &http.Client{Timeout: 30 * time.Minute},
		Logger:   logger,
	}
}

// Fetch returns a cached artifact for spec, downloading it when absent or
// when the cached copy fails verification. A failed download never leaves a
// file at the cache path.
func (f *Fetcher) Fetch(ctx context.Context, spec Spec) (Artifact, error) {
	dest, err := f.cachePath(spec)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	format := spec.Format
	if format == "" {
		format = FormatFromName(dest)
	}

	unlock, err := acquireLock(ctx, dest)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer unlock()

	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		sum, err := computeChecksum(dest)
		if err == nil && (spec.SHA256 == "" || strings.EqualFold(sum, spec.SHA256)) {
			f.Logger.Debug().Str("path", dest).Msg("download cache hit")
			return Artifact{Path: dest, Size: info.Size(), SHA256: sum, Cached: true, Format: format}, nil
		}
		f.Logger.Warn().Str("path", dest).Msg("cached artifact failed verification; downloading again")
		_ = os.Remove(dest)
	}

	size, sum, err := f.download(ctx, dest, spec)
	if err != nil {
		return Artifact{}, err
	}
	f.Logger.Info().Str("url", spec.URL).Str("size", humanize.Bytes(uint64(size))).Msg("downloaded")
	return Artifact{Path: dest, Size: size, SHA256: sum, Format: format}, nil
}

// Invalidate removes a cache entry so the next Fetch downloads it again.
func (f *Fetcher) Invalidate(a Artifact) {
	if a.Path == "" {
		return
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.Logger.Warn().Err(err).Str("path", a.Path).Msg("invalidate cache entry")
	}
}

func (f *Fetcher) cachePath(spec Spec) (string, error) {
	name := strings.TrimSpace(spec.FileName)
	if name == "" {
		parsed, err := url.Parse(spec.URL)
		if err != nil {
			return "", fmt.Errorf("parse download url: %w", err)
		}
		name = path.Base(parsed.Path)
		if name == "." || name == "" || name == "/" {
			return "", fmt.Errorf("infer artifact name from url: %s", spec.URL)
		}
	}
	return filepath.Join(f.CacheDir, filepath.Base(name)), nil
}

func (f *Fetcher) download(ctx context.Context, dest string, spec Spec) (int64, string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, "", fmt.Errorf("%w: prepare cache dir: %v", ErrDownloadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: create request: %v", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, spec.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, "", fmt.Errorf("%w: %s: unexpected status %s", ErrDownloadFailed, spec.URL, resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return 0, "", fmt.Errorf("%w: create temp file: %v", ErrDownloadFailed, err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	h := sha256.New()
	var body io.Reader = resp.Body
	if f.Progress != nil {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, fn: f.Progress}
	}
	size, err := io.Copy(io.MultiWriter(tmpFile, h), body)
	if err != nil {
		tmpFile.Close()
		return 0, "", fmt.Errorf("%w: write %s: %v", ErrDownloadFailed, spec.URL, err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, "", fmt.Errorf("%w: close temp file: %v", ErrDownloadFailed, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if spec.SHA256 != "" && !strings.EqualFold(sum, spec.SHA256) {
		return 0, "", fmt.Errorf("%w: %s: got sha256 %s, want %s", ErrIntegrityMismatch, spec.URL, sum, spec.SHA256)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, "", fmt.Errorf("%w: finalize download: %v", ErrDownloadFailed, err)
	}
	return size, sum, nil
}

type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.done, p.total)
	}
	return n, err
}

// FormatFromName infers the archive format from a file name.
func FormatFromName(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	default:
		return FormatNone
	}
}

func acquireLock(ctx context.Context, dest string) (func(), error) {
	lockPath := dest + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare cache root: %w", err)
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func computeChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
